package ports

import (
	"context"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

// QueryService is the serving pipeline entry point used by the HTTP
// layer. Both modes share admission, cache and retrieval; only
// delivery differs.
type QueryService interface {
	Ask(ctx context.Context, req *query.Request) (*query.Answer, error)
	AskStream(ctx context.Context, req *query.Request) (<-chan query.StreamChunk, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}
