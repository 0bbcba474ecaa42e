package chi

import (
	"context"
	"net/http"

	"github.com/Guilherme9797/meu-app/internal/usecase/health"
	"github.com/Guilherme9797/meu-app/internal/usecase/indexing"
	"github.com/Guilherme9797/meu-app/internal/usecase/intake"
)

// IntakeService answers one incoming client message.
type IntakeService interface {
	HandleIncoming(ctx context.Context, phone, name, text, providerMsgID string) (intake.Reply, error)
}

// Indexer manages the knowledge base index.
type Indexer interface {
	Rebuild(ctx context.Context) (indexing.Result, error)
	Update(ctx context.Context) (indexing.Result, error)
	Status() indexing.Stats
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) health.Report
}

// WhatsAppGateway is the outbound side of the WhatsApp integration plus
// webhook verification and registration.
type WhatsAppGateway interface {
	SendText(ctx context.Context, phone, message string) error
	VerifySignature(rawBody []byte, header http.Header) bool
	UpdateWebhookReceived(ctx context.Context, url string) error
	UpdateEveryWebhooks(ctx context.Context, url string) error
}
