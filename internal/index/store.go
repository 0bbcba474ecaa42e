// Package index implements the on-disk chunk store: embedding vectors plus
// chunk metadata for the PDF knowledge base. The store is read concurrently
// by request handlers and replaced atomically by the indexing use case.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// Store serves nearest-neighbor queries over an immutable snapshot of the
// index. Readers always see a consistent snapshot; Swap installs a new one
// after a rebuild without blocking in-flight searches.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Snapshot is one immutable generation of the index.
type Snapshot struct {
	Docs   []domain.Document
	Chunks []domain.Chunk
}

// Open loads the store from dir. A missing index is not an error: the store
// starts empty and Search reports domain.ErrIndexUnavailable until the first
// successful build.
func Open(dir string) (*Store, error) {
	snap, err := Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return &Store{snap: snap}, nil
}

// NewStore creates a store over an in-memory snapshot. Used by tests and by
// the indexer before the first flush.
func NewStore(snap *Snapshot) *Store {
	return &Store{snap: snap}
}

// Swap installs a new snapshot. Called by the indexing use case after a
// successful rebuild or incremental update.
func (s *Store) Swap(snap *Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns the current snapshot. The caller must treat it as read-only.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Count returns the number of chunks in the current snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return len(s.snap.Chunks)
}

// Documents returns the fingerprint table of the current snapshot.
func (s *Store) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil
	}
	return s.snap.Docs
}

// Search returns up to k chunks ordered by descending cosine similarity to
// the query vector. Read-only. Fails with domain.ErrIndexUnavailable when the
// store has not been built.
func (s *Store) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil || len(snap.Chunks) == 0 {
		return nil, domain.ErrIndexUnavailable
	}
	if k <= 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(snap.Chunks))
	for _, ch := range snap.Chunks {
		scored = append(scored, domain.ScoredChunk{
			Chunk: ch,
			Score: Cosine(query, ch.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Cosine computes cosine similarity between two vectors. Mismatched or zero
// vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
