package domain

import "context"

// ChatModel generates text completions from a system instruction and a user
// prompt. Implementations map provider failures to ErrChatProvider.
type ChatModel interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// WebResult is one hit from the external fallback search.
type WebResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearcher is the external web-search fallback contract.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}
