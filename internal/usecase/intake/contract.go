package intake

import (
	"context"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// Retriever fetches grounded context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
	ShouldFallback(selected []domain.ScoredChunk) bool
}

// SessionStore persists conversation sessions.
type SessionStore interface {
	GetOrCreate(ctx context.Context, phone, name string) (domain.Session, error)
	SetTopic(ctx context.Context, id, topic string) error
}

// MessageStore persists message exchanges and powers webhook deduplication
// and conversation history.
type MessageStore interface {
	ExistsProviderMsg(ctx context.Context, providerMsgID string) (bool, error)
	SaveExchange(ctx context.Context, sessionID, providerMsgID, userText, reply, topic string, sources []domain.AuditSource) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}
