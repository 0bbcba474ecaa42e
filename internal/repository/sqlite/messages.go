package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// MessageRepository persists message exchanges.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ExistsProviderMsg reports whether a provider message id was already
// processed. Used to drop webhook redeliveries.
func (r *MessageRepository) ExistsProviderMsg(ctx context.Context, providerMsgID string) (bool, error) {
	if providerMsgID == "" {
		return false, nil
	}
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE provider_msg_id = ?`, providerMsgID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup provider msg: %w", err)
	}
	return true, nil
}

// SaveExchange stores the incoming user message and the assistant reply in
// one transaction, with the reply's audit sources serialized as JSON.
func (r *MessageRepository) SaveExchange(
	ctx context.Context,
	sessionID, providerMsgID, userText, reply, topic string,
	sources []domain.AuditSource,
) error {
	if sources == nil {
		sources = []domain.AuditSource{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var provider any
	if providerMsgID != "" {
		provider = providerMsgID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages(session_id, provider_msg_id, role, content, topic) VALUES(?, ?, 'user', ?, ?)`,
		sessionID, provider, userText, topic,
	)
	if err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages(session_id, role, content, topic, sources) VALUES(?, 'assistant', ?, ?, ?)`,
		sessionID, reply, topic, string(sourcesJSON),
	)
	if err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// ListRecent returns the last n messages of a session in chronological order.
func (r *MessageRepository) ListRecent(ctx context.Context, sessionID string, n int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, COALESCE(provider_msg_id, ''), role, content, topic, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ProviderMsgID, &m.Role, &m.Content, &m.Topic, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
