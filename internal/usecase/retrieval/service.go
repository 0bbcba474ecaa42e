package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/logger"
	"github.com/Guilherme9797/meu-app/internal/metrics"
)

// Service runs one retrieval call: embed the query, fetch candidates from the
// chunk store, and select the final context. Each call is request-scoped;
// there is no shared mutable state beyond the read-only store.
type Service struct {
	store     Searcher
	embed     Embedder
	params    Params
	overfetch int
	// Confidence is the stricter threshold the fallback trigger compares
	// selected scores against.
	confidence float64
}

// Option configures a Service.
type Option func(*Service)

// WithOverfetch sets the candidate overfetch multiplier (default 5): the
// store is asked for k*overfetch nearest neighbors so the selector has a
// meaningful pool to diversify over.
func WithOverfetch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.overfetch = n
		}
	}
}

// New creates a retrieval service.
func New(store Searcher, embed Embedder, params Params, confidence float64, opts ...Option) *Service {
	s := &Service{
		store:      store,
		embed:      embed,
		params:     params,
		overfetch:  5,
		confidence: confidence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the immutable selection parameters.
func (s *Service) Params() Params { return s.params }

// Retrieve embeds the query, fetches candidates, and returns the selected
// context in diversity-aware rank order. An empty result means no internal
// context and is not an error; index and embedding failures surface to the
// caller, who decides on retries.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = s.params.TargetSize
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.Search(embResult.Embedding, k*s.overfetch)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	params := s.params
	params.TargetSize = k
	selected := Select(candidates, params)

	if len(selected) == 0 {
		metrics.RetrievalRequestsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
	}
	metrics.RetrievalSelectedChunks.Observe(float64(len(selected)))

	logger.FromContext(ctx).Debug("retrieval",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
	)
	return selected, nil
}

// ShouldFallback applies the configured confidence threshold to a selection
// result.
func (s *Service) ShouldFallback(selected []domain.ScoredChunk) bool {
	return ShouldFallback(selected, s.confidence)
}
