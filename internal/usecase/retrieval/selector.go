package retrieval

import (
	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/index"
)

// Params are the selection policy thresholds. They are pure policy, loaded
// once at startup and validated at config-load time; Select assumes they are
// well-formed.
type Params struct {
	// MinScore discards candidates scoring below it before selection.
	MinScore float64
	// PerDocCap bounds how many chunks a single document may contribute.
	PerDocCap int
	// DiversityWeight is the relevance/diversity trade-off lambda in [0,1]:
	// 1 ranks purely by relevance, 0 purely by dissimilarity to prior picks.
	DiversityWeight float64
	// TargetSize stops selection once reached; <= 0 means no limit.
	TargetSize int
}

// Select post-processes raw nearest-neighbor candidates: drops low-score
// chunks, caps chunks per document, and greedily re-ranks the rest by
// marginal relevance. The returned order is the diversity-aware ranking, not
// the raw similarity order. An empty result is valid and means "no internal
// context", never a fault.
//
// Each round scores every eligible candidate as
//
//	lambda*relevance - (1-lambda)*maxSim(candidate, selected)
//
// where maxSim against an empty selection is 0, and picks the highest.
// Ties break by higher raw score, then by original retrieval order, so
// identical inputs always produce identical output.
func Select(candidates []domain.ScoredChunk, p Params) []domain.ScoredChunk {
	pool := make([]domain.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= p.MinScore {
			pool = append(pool, c)
		}
	}

	lambda := p.DiversityWeight
	docCount := make(map[string]int)
	selected := make([]domain.ScoredChunk, 0, len(pool))

	for len(pool) > 0 {
		if p.TargetSize > 0 && len(selected) >= p.TargetSize {
			break
		}

		best := -1
		var bestCombined, bestRaw float64
		for i, c := range pool {
			if docCount[c.Chunk.DocID] >= p.PerDocCap {
				continue
			}
			combined := lambda*c.Score - (1-lambda)*maxSimilarity(c, selected)
			if best < 0 || combined > bestCombined ||
				(combined == bestCombined && c.Score > bestRaw) {
				best, bestCombined, bestRaw = i, combined, c.Score
			}
		}
		if best < 0 {
			// every remaining candidate's document is at cap
			break
		}

		pick := pool[best]
		selected = append(selected, pick)
		docCount[pick.Chunk.DocID]++
		pool = append(pool[:best], pool[best+1:]...)
	}

	return selected
}

// maxSimilarity is the redundancy penalty: the highest cosine similarity
// between the candidate and any already-selected chunk, 0 for an empty
// selection.
func maxSimilarity(c domain.ScoredChunk, selected []domain.ScoredChunk) float64 {
	var maxSim float64
	for _, s := range selected {
		if sim := index.Cosine(c.Chunk.Vector, s.Chunk.Vector); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}
