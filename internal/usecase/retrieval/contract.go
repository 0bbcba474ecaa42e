package retrieval

import (
	"context"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// Searcher is the candidate retriever contract: top-k nearest chunks by
// descending similarity, read-only. Fails with domain.ErrIndexUnavailable
// when the store has not been built.
type Searcher interface {
	Search(vector []float32, k int) ([]domain.ScoredChunk, error)
}

// Embedder vectorizes query text into the chunk store's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
