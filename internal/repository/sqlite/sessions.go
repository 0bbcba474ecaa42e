package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

// SessionRepository persists sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetOrCreate returns the session for phone, creating it on first contact.
func (r *SessionRepository) GetOrCreate(ctx context.Context, phone, name string) (domain.Session, error) {
	s, err := r.getByPhone(ctx, phone)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, err
	}

	s = domain.Session{ID: uuid.NewString(), Phone: phone, Name: name}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions(id, phone, name) VALUES(?, ?, ?)
		 ON CONFLICT(phone) DO NOTHING`,
		s.ID, s.Phone, s.Name,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	// Re-read to cover the concurrent-create race and pick up timestamps.
	return r.getByPhone(ctx, phone)
}

// Get returns a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (domain.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, phone, name, topic, created_at, updated_at FROM sessions WHERE id = ?`, id))
}

// SetTopic records the last classified legal topic for the session.
func (r *SessionRepository) SetTopic(ctx context.Context, id, topic string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET topic = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, topic, id)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) getByPhone(ctx context.Context, phone string) (domain.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, phone, name, topic, created_at, updated_at FROM sessions WHERE phone = ?`, phone))
}

func (r *SessionRepository) scanOne(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.Phone, &s.Name, &s.Topic, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}
