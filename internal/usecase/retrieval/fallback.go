package retrieval

import "github.com/Guilherme9797/meu-app/internal/domain"

// ShouldFallback decides whether external web search should be invoked for a
// selection result. Pure and synchronous: fallback is signaled when the
// selection is empty or every selected chunk's raw score sits below the
// stricter confidence threshold.
func ShouldFallback(selected []domain.ScoredChunk, confidence float64) bool {
	if len(selected) == 0 {
		return true
	}
	for _, c := range selected {
		if c.Score >= confidence {
			return false
		}
	}
	return true
}
