package query

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for pipeline failures. Handlers map these to
// structured HTTP error responses; services wrap them with context.
var (
	// ErrRetrievalUnavailable reports that the context store could not
	// be reached. Depending on configuration the pipeline degrades to a
	// context-free prompt or fails the request.
	ErrRetrievalUnavailable = errors.New("context retrieval unavailable")

	// ErrInferenceTimeout reports that the backend exceeded the
	// per-request inference budget. Never retried automatically.
	ErrInferenceTimeout = errors.New("inference timed out")

	// ErrStreamInterrupted reports a backend connection drop mid-stream.
	ErrStreamInterrupted = errors.New("inference stream interrupted")
)

// RateLimitedError reports an admission denial. It is a normal business
// outcome, not a server fault.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// InferenceError reports a malformed or erroring backend response.
// Status carries the backend HTTP status when one was received.
type InferenceError struct {
	Status  int
	Message string
}

func (e *InferenceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("inference backend error (status %d): %s", e.Status, e.Message)
	}
	return "inference backend error: " + e.Message
}
