package domain

// Chunk is a contiguous span of text extracted from one source document,
// embedded for similarity search. Chunks are created at index build time and
// immutable until the owning document is reindexed.
type Chunk struct {
	ID       string    `json:"chunk_id"`
	DocID    string    `json:"doc_id"`
	DocTitle string    `json:"doc_title"`
	Span     string    `json:"span"` // page range, e.g. "p. 3-4"
	Path     string    `json:"path"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"-"`
}

// ScoredChunk pairs a chunk with its query-dependent relevance score.
// Scores are never persisted; a result set lives for one request only.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Document describes one indexed source file. A document exclusively owns its
// chunks: reindexing the document invalidates and regenerates all of them.
type Document struct {
	ID          string `json:"doc_id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Fingerprint uint64 `json:"fingerprint"`
	Chunks      int    `json:"chunks"`
}
