package domain

import "time"

// Session is one client conversation keyed by phone number.
type Session struct {
	ID        string
	Phone     string
	Name      string
	Topic     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a session's history.
type Message struct {
	ID            int64
	SessionID     string
	ProviderMsgID string
	Role          string // "user" | "assistant"
	Content       string
	Topic         string
	CreatedAt     time.Time
}

// AuditSource describes one evidence source used for a reply. Kept only for
// internal audit; never exposed to the client.
type AuditSource struct {
	Type  string `json:"type"` // "pdf" | "web"
	Title string `json:"title,omitempty"`
	Span  string `json:"span,omitempty"`
	URL   string `json:"url,omitempty"`
}
