package ports

import (
	"context"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

// GenerateResult is a completed full-response inference call.
type GenerateResult struct {
	Text     string
	Model    string
	Duration float64
}

// InferenceClient proxies prompts to the model backend. Timeouts are
// enforced through ctx; a timeout maps to query.ErrInferenceTimeout and
// is reported, never retried automatically.
type InferenceClient interface {
	// Generate blocks until the backend completes and returns the full
	// answer text.
	Generate(ctx context.Context, prompt string) (*GenerateResult, error)

	// GenerateStream relays partial results as they arrive, preserving
	// backend order. The returned channel carries zero or more
	// ChunkToken frames followed by exactly one ChunkDone or ChunkError
	// frame, then closes. Cancelling ctx aborts the backend call.
	GenerateStream(ctx context.Context, prompt string) (<-chan query.StreamChunk, error)

	// Ping reports backend reachability with its own short timeout so a
	// slow backend cannot hang the health endpoint.
	Ping(ctx context.Context) error

	// Model is the configured model name, for reporting.
	Model() string
}
