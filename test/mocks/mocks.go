package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/domain/tunnel"
	"github.com/frcrag/frcrag/internal/core/ports"
)

// ContextRetrieverMock is a lightweight mock for ContextRetriever
type ContextRetrieverMock struct {
	RetrieveFn func(ctx context.Context, text string, f query.Filters) ([]query.Passage, error)
	SuggestFn  func(ctx context.Context, prefix string, limit int) ([]string, error)
	PingFn     func(ctx context.Context) error

	mu            sync.Mutex
	RetrieveCalls int
}

func (m *ContextRetrieverMock) Retrieve(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
	m.mu.Lock()
	m.RetrieveCalls++
	m.mu.Unlock()
	if m.RetrieveFn != nil {
		return m.RetrieveFn(ctx, text, f)
	}
	return nil, nil
}

func (m *ContextRetrieverMock) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if m.SuggestFn != nil {
		return m.SuggestFn(ctx, prefix, limit)
	}
	return nil, nil
}

func (m *ContextRetrieverMock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// RetrieveCallCount returns how many times Retrieve ran.
func (m *ContextRetrieverMock) RetrieveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RetrieveCalls
}

// InferenceClientMock is a lightweight mock for InferenceClient
type InferenceClientMock struct {
	GenerateFn       func(ctx context.Context, prompt string) (*ports.GenerateResult, error)
	GenerateStreamFn func(ctx context.Context, prompt string) (<-chan query.StreamChunk, error)
	PingFn           func(ctx context.Context) error
	ModelName        string

	mu            sync.Mutex
	GenerateCalls int
}

func (m *InferenceClientMock) Generate(ctx context.Context, prompt string) (*ports.GenerateResult, error) {
	m.mu.Lock()
	m.GenerateCalls++
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, prompt)
	}
	return &ports.GenerateResult{Text: "mock answer", Model: m.Model()}, nil
}

func (m *InferenceClientMock) GenerateStream(ctx context.Context, prompt string) (<-chan query.StreamChunk, error) {
	if m.GenerateStreamFn != nil {
		return m.GenerateStreamFn(ctx, prompt)
	}
	out := make(chan query.StreamChunk, 2)
	out <- query.StreamChunk{Type: query.ChunkToken, Content: "mock answer"}
	out <- query.StreamChunk{Type: query.ChunkDone}
	close(out)
	return out, nil
}

func (m *InferenceClientMock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *InferenceClientMock) Model() string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return "mock-model"
}

func (m *InferenceClientMock) GenerateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateCalls
}

// RateLimitRepositoryMock is a lightweight mock for RateLimitRepository
type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, identity string, window, ttl time.Duration) (int, time.Time, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, identity string, window, ttl time.Duration) (int, time.Time, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, identity, window, ttl)
	}
	return 1, time.Now().Truncate(window), nil
}

// RateLimiterMock is a lightweight mock for RateLimiter
type RateLimiterMock struct {
	AllowFn func(ctx context.Context, identity string) (bool, int, int, time.Time, error)
	StatsFn func() ports.RateLimiterStats
}

func (m *RateLimiterMock) Allow(ctx context.Context, identity string) (bool, int, int, time.Time, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, identity)
	}
	return true, 59, 60, time.Now().Add(time.Minute), nil
}

func (m *RateLimiterMock) Stats() ports.RateLimiterStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return ports.RateLimiterStats{Limit: 60, WindowS: 60}
}

func (m *RateLimiterMock) ResetStats() {}

// QueryServiceMock is a lightweight mock for QueryService
type QueryServiceMock struct {
	AskFn       func(ctx context.Context, req *query.Request) (*query.Answer, error)
	AskStreamFn func(ctx context.Context, req *query.Request) (<-chan query.StreamChunk, error)
	SuggestFn   func(ctx context.Context, prefix string, limit int) ([]string, error)
}

func (m *QueryServiceMock) Ask(ctx context.Context, req *query.Request) (*query.Answer, error) {
	if m.AskFn != nil {
		return m.AskFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *QueryServiceMock) AskStream(ctx context.Context, req *query.Request) (<-chan query.StreamChunk, error) {
	if m.AskStreamFn != nil {
		return m.AskStreamFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *QueryServiceMock) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if m.SuggestFn != nil {
		return m.SuggestFn(ctx, prefix, limit)
	}
	return nil, nil
}

// TunnelManagerMock is a lightweight mock for TunnelManager
type TunnelManagerMock struct {
	StartFn func(ctx context.Context) (tunnel.State, error)
	StopFn  func() tunnel.State
	StateFn func() tunnel.State
}

func (m *TunnelManagerMock) Start(ctx context.Context) (tunnel.State, error) {
	if m.StartFn != nil {
		return m.StartFn(ctx)
	}
	return tunnel.State{Status: tunnel.StatusRunning}, nil
}

func (m *TunnelManagerMock) Stop() tunnel.State {
	if m.StopFn != nil {
		return m.StopFn()
	}
	return tunnel.State{Status: tunnel.StatusStopped}
}

func (m *TunnelManagerMock) State() tunnel.State {
	if m.StateFn != nil {
		return m.StateFn()
	}
	return tunnel.State{Status: tunnel.StatusStopped}
}

// ImageFetcherMock is a lightweight mock for ImageFetcher
type ImageFetcherMock struct {
	FetchImageFn func(ctx context.Context, path string) (io.ReadCloser, string, error)
}

func (m *ImageFetcherMock) FetchImage(ctx context.Context, path string) (io.ReadCloser, string, error) {
	if m.FetchImageFn != nil {
		return m.FetchImageFn(ctx, path)
	}
	return nil, "", fmt.Errorf("not found")
}
