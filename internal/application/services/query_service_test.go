package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	impl "github.com/frcrag/frcrag/internal/application/services"
	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/frcrag/frcrag/test/mocks"
)

func newQueryService(retriever *mocks.ContextRetrieverMock, inference *mocks.InferenceClientMock) *impl.QueryService {
	cache := impl.NewAnswerCacheService(nil)
	return impl.NewQueryService(cache, retriever, inference, impl.QueryConfig{
		DefaultTopK:               5,
		InferenceTimeout:          time.Minute,
		DegradeOnRetrievalFailure: true,
	}, nil)
}

func TestAsk_AssemblesAnswerFromRetrievalAndInference(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{
		RetrieveFn: func(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
			return []query.Passage{
				{Content: "the arm uses a NEO motor", Page: 12, Score: 0.9, Type: "text",
					Images: []query.ImageRef{{Filename: "arm.png", Path: "arm.png", Page: 12}}},
				{Content: "gear ratio is 45:1", Page: 13, Score: 0.8, Type: "table",
					Images: []query.ImageRef{{Filename: "arm.png", Path: "arm.png", Page: 12}}},
			}, nil
		},
	}
	inference := &mocks.InferenceClientMock{
		GenerateFn: func(ctx context.Context, prompt string) (*ports.GenerateResult, error) {
			if !strings.Contains(prompt, "the arm uses a NEO motor") {
				t.Errorf("prompt missing retrieved context: %q", prompt)
			}
			return &ports.GenerateResult{Text: "It uses a NEO motor.", Model: "mistral"}, nil
		},
	}
	svc := newQueryService(retriever, inference)

	ans, err := svc.Ask(context.Background(), &query.Request{Question: "How does the arm work?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "It uses a NEO motor." {
		t.Fatalf("answer text = %q", ans.Text)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(ans.Sources))
	}
	if len(ans.Images) != 1 {
		t.Fatalf("duplicate images must collapse, got %d", len(ans.Images))
	}
	if ans.Cached {
		t.Fatal("first answer must not be marked cached")
	}
	if ans.Model != "mistral" {
		t.Fatalf("model = %q", ans.Model)
	}
}

func TestAsk_SecondCallHitsCache(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{}
	inference := &mocks.InferenceClientMock{}
	svc := newQueryService(retriever, inference)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, &query.Request{Question: "same question"}); err != nil {
		t.Fatal(err)
	}
	ans, err := svc.Ask(ctx, &query.Request{Question: "  SAME   question "})
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Cached {
		t.Fatal("normalized duplicate should hit the cache")
	}
	if inference.GenerateCallCount() != 1 {
		t.Fatalf("inference ran %d times, want 1", inference.GenerateCallCount())
	}
}

func TestAsk_ConcurrentDuplicatesRetrieveOnce(t *testing.T) {
	release := make(chan struct{})
	retriever := &mocks.ContextRetrieverMock{}
	inference := &mocks.InferenceClientMock{
		GenerateFn: func(ctx context.Context, prompt string) (*ports.GenerateResult, error) {
			<-release
			return &ports.GenerateResult{Text: "shared", Model: "mock-model"}, nil
		},
	}
	svc := newQueryService(retriever, inference)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Ask(context.Background(), &query.Request{Question: "duplicate"})
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := retriever.RetrieveCallCount(); n != 1 {
		t.Fatalf("retrieval ran %d times for coalesced duplicates, want 1", n)
	}
	if n := inference.GenerateCallCount(); n != 1 {
		t.Fatalf("inference ran %d times for coalesced duplicates, want 1", n)
	}
}

func TestAsk_DegradesWhenRetrievalUnavailable(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{
		RetrieveFn: func(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
			return nil, query.ErrRetrievalUnavailable
		},
	}
	var sawPrompt string
	inference := &mocks.InferenceClientMock{
		GenerateFn: func(ctx context.Context, prompt string) (*ports.GenerateResult, error) {
			sawPrompt = prompt
			return &ports.GenerateResult{Text: "best effort", Model: "mock-model"}, nil
		},
	}
	svc := newQueryService(retriever, inference)

	ans, err := svc.Ask(context.Background(), &query.Request{Question: "plain question"})
	if err != nil {
		t.Fatalf("degrade mode must not fail the request: %v", err)
	}
	if sawPrompt != "plain question" {
		t.Fatalf("degraded prompt should be the bare question, got %q", sawPrompt)
	}
	if len(ans.Sources) != 0 {
		t.Fatal("no sources can exist without retrieval")
	}
}

func TestAsk_FailPolicyRejectsWhenRetrievalUnavailable(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{
		RetrieveFn: func(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
			return nil, query.ErrRetrievalUnavailable
		},
	}
	inference := &mocks.InferenceClientMock{}
	cache := impl.NewAnswerCacheService(nil)
	svc := impl.NewQueryService(cache, retriever, inference, impl.QueryConfig{
		DegradeOnRetrievalFailure: false,
	}, nil)

	_, err := svc.Ask(context.Background(), &query.Request{Question: "q"})
	if !errors.Is(err, query.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
	if inference.GenerateCallCount() != 0 {
		t.Fatal("inference must not run when retrieval fails under the fail policy")
	}
}

func TestAskStream_AccumulatesAndCaches(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{
		RetrieveFn: func(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
			return []query.Passage{{Content: "ctx", Page: 1, Score: 0.9}}, nil
		},
	}
	inference := &mocks.InferenceClientMock{
		GenerateStreamFn: func(ctx context.Context, prompt string) (<-chan query.StreamChunk, error) {
			out := make(chan query.StreamChunk, 4)
			out <- query.StreamChunk{Type: query.ChunkToken, Content: "Hello"}
			out <- query.StreamChunk{Type: query.ChunkToken, Content: " world"}
			out <- query.StreamChunk{Type: query.ChunkDone}
			close(out)
			return out, nil
		},
	}
	svc := newQueryService(retriever, inference)

	chunks, err := svc.AskStream(context.Background(), &query.Request{Question: "stream me"})
	if err != nil {
		t.Fatal(err)
	}

	var tokens []string
	var done *query.Answer
	sawSources := false
	for chunk := range chunks {
		switch chunk.Type {
		case query.ChunkToken:
			tokens = append(tokens, chunk.Content)
		case query.ChunkSources:
			sawSources = true
		case query.ChunkDone:
			done = chunk.Answer
		case query.ChunkError:
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
	}

	if strings.Join(tokens, "") != "Hello world" {
		t.Fatalf("tokens = %q", strings.Join(tokens, ""))
	}
	if !sawSources {
		t.Fatal("sources frame missing")
	}
	if done == nil || done.Text != "Hello world" {
		t.Fatalf("done frame = %+v", done)
	}

	// A later full-mode query for the same question must hit the cache.
	ans, err := svc.Ask(context.Background(), &query.Request{Question: "stream me"})
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Cached {
		t.Fatal("streamed answer was not cached on clean end-of-stream")
	}
}

func TestAskStream_ErrorIsTerminalAndNotCached(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{}
	inference := &mocks.InferenceClientMock{
		GenerateStreamFn: func(ctx context.Context, prompt string) (<-chan query.StreamChunk, error) {
			out := make(chan query.StreamChunk, 2)
			out <- query.StreamChunk{Type: query.ChunkToken, Content: "partial"}
			out <- query.StreamChunk{Type: query.ChunkError, Err: query.ErrStreamInterrupted}
			close(out)
			return out, nil
		},
	}
	svc := newQueryService(retriever, inference)

	chunks, err := svc.AskStream(context.Background(), &query.Request{Question: "broken"})
	if err != nil {
		t.Fatal(err)
	}
	var last query.StreamChunk
	for chunk := range chunks {
		last = chunk
	}
	if last.Type != query.ChunkError {
		t.Fatalf("last frame = %v, want error", last.Type)
	}
	if !errors.Is(last.Err, query.ErrStreamInterrupted) {
		t.Fatalf("err = %v", last.Err)
	}

	// Partial output must not be cached.
	inference.GenerateStreamFn = nil
	ans, err := svc.Ask(context.Background(), &query.Request{Question: "broken"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Cached {
		t.Fatal("a failed stream must not populate the cache")
	}
}

func TestAskStream_ClosedWithoutTerminalFrame(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{}
	inference := &mocks.InferenceClientMock{
		GenerateStreamFn: func(ctx context.Context, prompt string) (<-chan query.StreamChunk, error) {
			out := make(chan query.StreamChunk, 1)
			out <- query.StreamChunk{Type: query.ChunkToken, Content: "trunc"}
			close(out)
			return out, nil
		},
	}
	svc := newQueryService(retriever, inference)

	chunks, err := svc.AskStream(context.Background(), &query.Request{Question: "drops"})
	if err != nil {
		t.Fatal(err)
	}
	var last query.StreamChunk
	for chunk := range chunks {
		last = chunk
	}
	if last.Type != query.ChunkError || !errors.Is(last.Err, query.ErrStreamInterrupted) {
		t.Fatalf("expected interruption error, got %+v", last)
	}
}

func TestAskStream_CacheHitReplaysAnswer(t *testing.T) {
	retriever := &mocks.ContextRetrieverMock{}
	inference := &mocks.InferenceClientMock{}
	svc := newQueryService(retriever, inference)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, &query.Request{Question: "warm"}); err != nil {
		t.Fatal(err)
	}

	chunks, err := svc.AskStream(ctx, &query.Request{Question: "warm"})
	if err != nil {
		t.Fatal(err)
	}
	var types []query.ChunkType
	for chunk := range chunks {
		types = append(types, chunk.Type)
	}
	want := []query.ChunkType{query.ChunkToken, query.ChunkSources, query.ChunkDone}
	if len(types) != len(want) {
		t.Fatalf("frames = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("frame %d = %v, want %v", i, types[i], want[i])
		}
	}
	if retriever.RetrieveCallCount() != 1 {
		t.Fatal("cache hit replay must not re-retrieve")
	}
}

func TestBuildPrompt(t *testing.T) {
	if got := impl.BuildPrompt("bare question", nil); got != "bare question" {
		t.Fatalf("empty context should produce the bare question, got %q", got)
	}

	prompt := impl.BuildPrompt("q", []query.Passage{
		{Content: "first", Page: 3},
		{Content: "second", Page: 7},
	})
	if !strings.Contains(prompt, "[Result 1 from page 3]:\nfirst") {
		t.Fatalf("prompt missing first passage: %q", prompt)
	}
	if !strings.Contains(prompt, "[Result 2 from page 7]:\nsecond") {
		t.Fatalf("prompt missing second passage: %q", prompt)
	}
	if !strings.Contains(prompt, "Answer the question based on the above context: q") {
		t.Fatalf("prompt missing question: %q", prompt)
	}
}
