package ports

import (
	"context"
	"io"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

// ContextRetriever is the narrow contract the pipeline requires from
// the document-ingestion/embedding collaborator. Retrieval is bounded
// in latency by the implementation; an unreachable store surfaces as
// query.ErrRetrievalUnavailable, never as fabricated context.
type ContextRetriever interface {
	// Retrieve returns passages ranked by relevance for the question.
	Retrieve(ctx context.Context, text string, f query.Filters) ([]query.Passage, error)

	// Suggest returns ranked completions for a partial query.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)

	// Ping reports store reachability. Cheap and bounded; used by the
	// health surface only.
	Ping(ctx context.Context) error
}

// ImageFetcher serves image assets referenced by retrieved passages.
type ImageFetcher interface {
	// FetchImage returns the asset body and its content type. The
	// caller closes the reader.
	FetchImage(ctx context.Context, path string) (io.ReadCloser, string, error)
}
