package indexing

import "github.com/Guilherme9797/meu-app/internal/domain"

// Mode is the update strategy chosen by change detection.
type Mode string

const (
	// NoChange means the source set matches the tracked fingerprints.
	NoChange Mode = "no_change"
	// Incremental means only new documents need embedding and appending.
	Incremental Mode = "incremental"
	// Full means a tracked document changed or disappeared; the underlying
	// store cannot be selectively invalidated, so everything is rebuilt.
	Full Mode = "full"
)

// Source is one candidate PDF discovered in the source directory.
type Source struct {
	Path        string
	Title       string
	Fingerprint uint64
}

// PlanUpdate compares the tracked fingerprint table against the current
// source set and decides between incremental add and full rebuild. For
// Incremental it also returns the sources that still need indexing.
func PlanUpdate(tracked []domain.Document, sources []Source) (Mode, []Source) {
	current := make(map[string]uint64, len(sources))
	for _, src := range sources {
		current[src.Path] = src.Fingerprint
	}

	seen := make(map[string]bool, len(tracked))
	for _, doc := range tracked {
		fp, ok := current[doc.Path]
		if !ok || fp != doc.Fingerprint {
			// removed or modified document invalidates its chunks
			return Full, nil
		}
		seen[doc.Path] = true
	}

	var fresh []Source
	for _, src := range sources {
		if !seen[src.Path] {
			fresh = append(fresh, src)
		}
	}
	if len(fresh) == 0 {
		return NoChange, nil
	}
	if len(tracked) == 0 {
		return Full, nil
	}
	return Incremental, fresh
}
