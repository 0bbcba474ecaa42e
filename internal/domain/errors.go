package domain

import "errors"

var (
	// ErrIndexUnavailable signals that the chunk store has not been built.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrChatProvider signals a chat completion provider failure.
	ErrChatProvider = errors.New("chat provider error")
	// ErrWebSearchProvider signals a web search provider failure.
	ErrWebSearchProvider = errors.New("web search provider error")
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateMessage signals a provider message id seen before.
	ErrDuplicateMessage = errors.New("duplicate message")
	// ErrRebuildInProgress signals that an index rebuild is already running.
	ErrRebuildInProgress = errors.New("index rebuild in progress")
)
