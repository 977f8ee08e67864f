package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const promptTemplate = `Answer the question based only on the following context:

%s

---

Answer the question based on the above context: %s

If relevant images are mentioned in the context, include references to them in your answer.
Based on the context and your knowledge, provide a detailed and accurate response, and draw conclusions if applicable.
If the context does not provide enough information for the full answer, connect what is provided with your own knowledge to give a comprehensive response.`

// QueryService coordinates the serving pipeline: cache lookup, context
// retrieval, inference, cache population. It owns no long-lived state
// itself; the cache and limiter guard their own.
type QueryService struct {
	cache     ports.AnswerCache
	retriever ports.ContextRetriever
	inference ports.InferenceClient
	cfg       QueryConfig
	logger    *logrus.Logger
}

// QueryConfig groups pipeline policy knobs.
type QueryConfig struct {
	DefaultTopK      int
	InferenceTimeout time.Duration
	// DegradeOnRetrievalFailure proceeds with a context-free prompt when
	// the store is unreachable instead of failing the request.
	DegradeOnRetrievalFailure bool
}

var _ ports.QueryService = (*QueryService)(nil)

func NewQueryService(cache ports.AnswerCache, retriever ports.ContextRetriever, inference ports.InferenceClient, cfg QueryConfig, logger *logrus.Logger) *QueryService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 2 * time.Minute
	}
	return &QueryService{cache: cache, retriever: retriever, inference: inference, cfg: cfg, logger: logger}
}

func (s *QueryService) filters(req *query.Request) query.Filters {
	k := req.TopK
	if k <= 0 {
		k = s.cfg.DefaultTopK
	}
	return query.Filters{Season: req.Season, TopK: k}
}

// Ask answers a query in full-response mode. Concurrent calls with the
// same fingerprint coalesce onto one retrieval+inference round-trip.
func (s *QueryService) Ask(ctx context.Context, req *query.Request) (*query.Answer, error) {
	f := s.filters(req)
	fp := query.Fingerprint(req.Question, f)

	ans, cached, err := s.cache.Fetch(ctx, fp, func(ctx context.Context) (*query.Answer, error) {
		return s.compute(ctx, req, f)
	})
	if err != nil {
		return nil, err
	}
	if cached && s.logger != nil {
		s.logger.WithField("fingerprint", fp[:12]).Debug("cache hit")
	}
	return ans, nil
}

// compute is the leader path: retrieve context, build the prompt, call
// the inference backend, assemble the answer. Runs detached from any
// single waiter's cancellation; bounded by the inference timeout.
func (s *QueryService) compute(ctx context.Context, req *query.Request, f query.Filters) (*query.Answer, error) {
	started := time.Now()

	passages, err := s.retrieve(ctx, req.Question, f)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req.Question, passages)

	inferCtx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	defer cancel()
	result, err := s.inference.Generate(inferCtx, prompt)
	if err != nil {
		return nil, err
	}

	ans := s.assemble(req.Question, result.Text, result.Model, passages)
	ans.Duration = time.Since(started).Seconds()
	return ans, nil
}

// retrieve applies the degrade-or-fail policy: an unreachable store
// either empties the context or fails the request, but never fabricates
// passages.
func (s *QueryService) retrieve(ctx context.Context, question string, f query.Filters) ([]query.Passage, error) {
	passages, err := s.retriever.Retrieve(ctx, question, f)
	if err == nil {
		return passages, nil
	}
	if errors.Is(err, query.ErrRetrievalUnavailable) && s.cfg.DegradeOnRetrievalFailure {
		if s.logger != nil {
			s.logger.WithError(err).Warn("context retrieval unavailable, degrading to context-free prompt")
		}
		return nil, nil
	}
	return nil, err
}

func (s *QueryService) assemble(question, text, model string, passages []query.Passage) *query.Answer {
	sources := make([]query.Source, 0, len(passages))
	seen := make(map[string]struct{})
	var images []query.ImageRef
	for _, p := range passages {
		sources = append(sources, query.Source{Page: p.Page, Score: p.Score, Type: p.Type})
		for _, img := range p.Images {
			if _, dup := seen[img.Filename]; dup {
				continue
			}
			seen[img.Filename] = struct{}{}
			images = append(images, img)
		}
	}
	return &query.Answer{
		ID:        uuid.New(),
		Question:  question,
		Text:      text,
		Sources:   sources,
		Images:    images,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// AskStream answers a query in streaming mode. Shares admission, cache
// lookup and retrieval with Ask; only delivery differs. Streaming
// misses are not coalesced because a stream is non-restartable; the
// assembled answer is cached on clean end-of-stream so later callers
// still hit.
func (s *QueryService) AskStream(ctx context.Context, req *query.Request) (<-chan query.StreamChunk, error) {
	f := s.filters(req)
	fp := query.Fingerprint(req.Question, f)

	out := make(chan query.StreamChunk, 8)

	if ans, ok := s.cache.Lookup(fp); ok {
		go func() {
			defer close(out)
			emit(ctx, out, query.StreamChunk{Type: query.ChunkToken, Content: ans.Text})
			emit(ctx, out, query.StreamChunk{Type: query.ChunkSources, Sources: ans.Sources, Images: ans.Images})
			emit(ctx, out, query.StreamChunk{Type: query.ChunkDone, Answer: ans})
		}()
		return out, nil
	}

	passages, err := s.retrieve(ctx, req.Question, f)
	if err != nil {
		close(out)
		return nil, err
	}
	prompt := BuildPrompt(req.Question, passages)

	inferCtx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	chunks, err := s.inference.GenerateStream(inferCtx, prompt)
	if err != nil {
		cancel()
		close(out)
		return nil, err
	}

	go func() {
		defer cancel()
		defer close(out)
		started := time.Now()
		var sb strings.Builder
		for chunk := range chunks {
			switch chunk.Type {
			case query.ChunkToken:
				sb.WriteString(chunk.Content)
				if !emit(ctx, out, chunk) {
					// Client gone: cancel drains the backend call.
					return
				}
			case query.ChunkDone:
				ans := s.assemble(req.Question, sb.String(), s.inference.Model(), passages)
				ans.Duration = time.Since(started).Seconds()
				s.cache.Store(fp, ans)
				emit(ctx, out, query.StreamChunk{Type: query.ChunkSources, Sources: ans.Sources, Images: ans.Images})
				emit(ctx, out, query.StreamChunk{Type: query.ChunkDone, Answer: ans})
				return
			case query.ChunkError:
				// Terminal failure: nothing cached, error surfaced.
				emit(ctx, out, chunk)
				return
			}
		}
		// Channel closed without a terminal frame: treat as a drop.
		emit(ctx, out, query.StreamChunk{Type: query.ChunkError, Err: query.ErrStreamInterrupted})
	}()

	return out, nil
}

// Suggest returns ranked completions for a partial query. Admission
// only; no cache involvement.
func (s *QueryService) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.retriever.Suggest(ctx, prefix, limit)
}

func emit(ctx context.Context, out chan<- query.StreamChunk, chunk query.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// BuildPrompt renders the retrieval context and question into the
// generation prompt. With no passages the question is asked directly.
func BuildPrompt(question string, passages []query.Passage) string {
	if len(passages) == 0 {
		return question
	}
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		parts = append(parts, fmt.Sprintf("[Result %d from page %d]:\n%s", i+1, p.Page, p.Content))
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n---\n\n"), question)
}
