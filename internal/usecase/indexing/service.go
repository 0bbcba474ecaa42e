// Package indexing builds and refreshes the chunk index from the PDF
// knowledge base: extraction, chunking, embedding and change detection.
package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/index"
	"github.com/Guilherme9797/meu-app/internal/metrics"
)

// Config holds the indexer settings.
type Config struct {
	IndexDir     string
	PDFDir       string
	ChunkChars   int
	ChunkOverlap int
	BatchSize    int
}

// Service rebuilds the chunk index from the PDF source directory. Rebuilds
// are serialized: a second concurrent request fails fast with
// domain.ErrRebuildInProgress instead of queueing.
type Service struct {
	store  *index.Store
	embed  domain.Embedder
	cfg    Config
	logger *zap.Logger

	mu sync.Mutex
}

// Stats describes the current index generation.
type Stats struct {
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	Titles     []string       `json:"titles"`
	LastUpdate *time.Time     `json:"last_update,omitempty"`
	PerDoc     map[string]int `json:"chunks_per_document"`
}

// Result reports what an update run did.
type Result struct {
	Mode      Mode   `json:"mode"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Added     int    `json:"added_chunks"`
	Elapsed   string `json:"elapsed"`
}

// New creates the indexing service.
func New(store *index.Store, embed domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Service{store: store, embed: embed, cfg: cfg, logger: logger}
}

// Rebuild discards the current index and rebuilds it from every PDF in the
// source directory.
func (s *Service) Rebuild(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, domain.ErrRebuildInProgress
	}
	defer s.mu.Unlock()

	sources, err := s.scanSources()
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues(string(Full), "error").Inc()
		return Result{}, err
	}
	return s.build(ctx, Full, nil, sources)
}

// Update detects changes against the tracked fingerprints and applies the
// cheapest update that keeps the index consistent: nothing, an incremental
// append for new documents, or a full rebuild when a tracked document changed
// or disappeared.
func (s *Service) Update(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, domain.ErrRebuildInProgress
	}
	defer s.mu.Unlock()

	sources, err := s.scanSources()
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues(string(Full), "error").Inc()
		return Result{}, err
	}

	mode, fresh := PlanUpdate(s.store.Documents(), sources)
	switch mode {
	case NoChange:
		snap := s.store.Snapshot()
		return Result{Mode: NoChange, Documents: len(snap.Docs), Chunks: len(snap.Chunks)}, nil
	case Incremental:
		return s.build(ctx, Incremental, s.store.Snapshot(), fresh)
	default:
		return s.build(ctx, Full, nil, sources)
	}
}

// Status reports the current index generation without touching the provider.
func (s *Service) Status() Stats {
	snap := s.store.Snapshot()
	stats := Stats{PerDoc: map[string]int{}}
	if snap == nil {
		return stats
	}
	stats.Documents = len(snap.Docs)
	stats.Chunks = len(snap.Chunks)
	for _, doc := range snap.Docs {
		stats.Titles = append(stats.Titles, doc.Title)
		stats.PerDoc[doc.Title] = doc.Chunks
	}
	sort.Strings(stats.Titles)
	if info, err := os.Stat(filepath.Join(s.cfg.IndexDir, "manifest.json")); err == nil {
		t := info.ModTime().UTC()
		stats.LastUpdate = &t
	}
	return stats
}

// build embeds the given sources and installs the resulting snapshot. For an
// incremental run base carries the surviving generation; for a full run it is
// nil.
func (s *Service) build(ctx context.Context, mode Mode, base *index.Snapshot, sources []Source) (Result, error) {
	started := time.Now()
	fail := func(err error) (Result, error) {
		metrics.IndexRebuildsTotal.WithLabelValues(string(mode), "error").Inc()
		return Result{}, err
	}

	next := &index.Snapshot{}
	if base != nil {
		next.Docs = append(next.Docs, base.Docs...)
		next.Chunks = append(next.Chunks, base.Chunks...)
	}

	added := 0
	for _, src := range sources {
		pages, err := ExtractPages(src.Path)
		if err != nil {
			return fail(fmt.Errorf("extract %s: %w", src.Title, err))
		}
		pieces := ChunkPages(pages, s.cfg.ChunkChars, s.cfg.ChunkOverlap)
		if len(pieces) == 0 {
			s.logger.Warn("PDF produced no text, skipping",
				zap.String("title", src.Title))
			continue
		}

		vectors, err := s.embedPieces(ctx, pieces)
		if err != nil {
			return fail(err)
		}

		docID := fmt.Sprintf("%s_%s", src.Title, uuid.NewString()[:8])
		for i, piece := range pieces {
			next.Chunks = append(next.Chunks, domain.Chunk{
				ID:       fmt.Sprintf("%s#%d", docID, i),
				DocID:    docID,
				DocTitle: src.Title,
				Span:     piece.Span,
				Path:     src.Path,
				Text:     piece.Text,
				Vector:   vectors[i],
			})
		}
		next.Docs = append(next.Docs, domain.Document{
			ID:          docID,
			Title:       src.Title,
			Path:        src.Path,
			Fingerprint: src.Fingerprint,
			Chunks:      len(pieces),
		})
		added += len(pieces)
		s.logger.Info("Indexed document",
			zap.String("title", src.Title),
			zap.Int("pages", len(pages)),
			zap.Int("chunks", len(pieces)))
	}

	if err := index.Write(s.cfg.IndexDir, next); err != nil {
		return fail(fmt.Errorf("persist index: %w", err))
	}
	s.store.Swap(next)

	metrics.IndexRebuildsTotal.WithLabelValues(string(mode), "ok").Inc()
	metrics.IndexChunks.Set(float64(len(next.Chunks)))

	s.logger.Info("Index updated",
		zap.String("mode", string(mode)),
		zap.Int("documents", len(next.Docs)),
		zap.Int("chunks", len(next.Chunks)),
		zap.Duration("elapsed", time.Since(started)))

	return Result{
		Mode:      mode,
		Documents: len(next.Docs),
		Chunks:    len(next.Chunks),
		Added:     added,
		Elapsed:   time.Since(started).Round(time.Millisecond).String(),
	}, nil
}

func (s *Service) embedPieces(ctx context.Context, pieces []Piece) ([][]float32, error) {
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch.Embeddings...)
	}
	return vectors, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embed, texts)
}

// scanSources lists PDFs in the source directory in name order and
// fingerprints their contents.
func (s *Service) scanSources() ([]Source, error) {
	entries, err := os.ReadDir(s.cfg.PDFDir)
	if err != nil {
		return nil, fmt.Errorf("read pdf dir: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(s.cfg.PDFDir, entry.Name())
		fp, err := index.FingerprintFile(path)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", entry.Name(), err)
		}
		sources = append(sources, Source{
			Path:        path,
			Title:       strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Fingerprint: fp,
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}
