package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrKeyNotFound signals a cache miss in the key-value store.
var ErrKeyNotFound = errors.New("key not found")

// KV is a small key-value store over the embedding_cache table, consumed by
// the embedding cache decorator.
type KV struct {
	db *sql.DB
}

// NewKV creates a key-value store.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value for key or ErrKeyNotFound.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx,
		`INSERT INTO embedding_cache(key, vector) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET vector = excluded.vector`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}
