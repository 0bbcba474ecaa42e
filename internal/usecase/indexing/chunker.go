package indexing

import (
	"fmt"
	"strings"
)

// Piece is one chunk of document text together with the page span it was
// extracted from.
type Piece struct {
	Span string
	Text string
}

// ChunkPages splits page texts into overlapping chunks of roughly chunkChars
// characters, cutting on word boundaries and recording the page span each
// chunk covers.
func ChunkPages(pages []string, chunkChars, overlap int) []Piece {
	if chunkChars <= 0 {
		chunkChars = 1200
	}
	if overlap < 0 || overlap >= chunkChars {
		overlap = 0
	}

	var pieces []Piece
	flush := func(startPg, endPg int, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		span := fmt.Sprintf("p. %d", startPg)
		if startPg != endPg {
			span = fmt.Sprintf("p. %d-%d", startPg, endPg)
		}
		pieces = append(pieces, Piece{Span: span, Text: text})
	}

	buf := ""
	spanStart, lastPg := 1, 1
	for i, pageText := range pages {
		pg := i + 1
		for _, line := range strings.Split(pageText, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			candidate := line
			if buf == "" {
				spanStart = pg
			} else {
				candidate = buf + "\n" + line
			}
			candidate = strings.TrimSpace(candidate)

			if len(candidate) >= chunkChars {
				cut := strings.LastIndex(candidate[:chunkChars], " ")
				if cut < 0 {
					cut = chunkChars
				}
				flush(spanStart, pg, candidate[:cut])

				start := cut - overlap
				if start < 0 {
					start = 0
				}
				buf = strings.TrimSpace(candidate[start:])
				spanStart = pg
			} else {
				buf = candidate
			}
			lastPg = pg
		}
	}
	if buf != "" {
		flush(spanStart, lastPg, buf)
	}
	return pieces
}
