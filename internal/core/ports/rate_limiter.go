package ports

import (
	"context"
	"time"
)

// RateLimitRepository provides low-level atomic operations for rate
// limiting counters. It abstracts storage (Redis or in-process memory).
// Implementations must be concurrency-safe.
type RateLimitRepository interface {
	// IncrementWindow atomically increments the request counter for
	// identity in the current fixed window and ensures the record
	// expires after ttl. Returns the updated count and the window start.
	IncrementWindow(ctx context.Context, identity string, window time.Duration, ttl time.Duration) (count int, windowStart time.Time, err error)
}

// RateLimiterStats are cumulative admission counters since process
// start (or the last reset).
type RateLimiterStats struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Limit   int   `json:"limit"`
	WindowS int   `json:"window_seconds"`
}

// RateLimiter decides admission per client identity before any
// expensive work happens. It never fails a request on its own faults:
// a storage error degrades to fail-open and a denial is a normal
// outcome, not an error.
type RateLimiter interface {
	// Allow consumes one request unit for identity.
	// remaining: additional requests allowed in the current window after
	// this one; reset: when the current window ends (Retry-After basis).
	Allow(ctx context.Context, identity string) (allowed bool, remaining int, limit int, reset time.Time, err error)

	Stats() RateLimiterStats
	ResetStats()
}
