package ports

import (
	"context"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

// CacheStats are the observable counters of the answer cache.
type CacheStats struct {
	Entries     int     `json:"entries"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate_percent"`
}

// AnswerCache maps query fingerprints to computed answers and owns the
// in-flight registry that coalesces concurrent misses. Implementations
// MUST be safe for concurrent use; contention on distinct fingerprints
// must not serialize.
type AnswerCache interface {
	// Lookup returns the live entry for fp. An entry past its TTL is
	// logically absent even if not yet evicted.
	Lookup(fp string) (*query.Answer, bool)

	// Store inserts or replaces the entry for fp with the configured TTL.
	Store(fp string, ans *query.Answer)

	// Fetch returns the cached answer for fp or invokes loader to
	// compute it. At most one loader runs per fingerprint at a time:
	// the first caller leads, concurrent callers wait and observe the
	// leader's exact success or failure. Failures are never cached.
	// The bool result reports whether the answer came from cache.
	Fetch(ctx context.Context, fp string, loader func(ctx context.Context) (*query.Answer, error)) (*query.Answer, bool, error)

	// Clear drops all entries.
	Clear()

	Stats() CacheStats
	ResetStats()
}
