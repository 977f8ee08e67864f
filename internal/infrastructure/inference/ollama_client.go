package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	config "github.com/frcrag/frcrag/configs"
	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var inferenceDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "inference_request_duration_seconds",
		Help:    "Latency of inference backend calls",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	},
	[]string{"mode", "outcome"},
)

func init() {
	prometheus.MustRegister(inferenceDuration)
}

// OllamaClient proxies prompts to an Ollama-compatible backend over its
// /api/generate endpoint.
type OllamaClient struct {
	baseURL     string
	model       string
	pingTimeout time.Duration
	http        *http.Client
	logger      *logrus.Logger
}

func NewOllamaClient(cfg *config.InferenceConfig, logger *logrus.Logger) *OllamaClient {
	pingTimeout := 2 * time.Second
	if cfg.PingTimeout > 0 {
		pingTimeout = cfg.PingTimeout
	}
	return &OllamaClient{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		pingTimeout: pingTimeout,
		// Per-request deadlines come from ctx; no client-level timeout so
		// long generations are not cut off under it.
		http:   &http.Client{},
		logger: logger,
	}
}

func (c *OllamaClient) Model() string { return c.model }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateFrame struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *OllamaClient) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &query.InferenceError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}
	return resp, nil
}

// mapTransportError distinguishes a blown deadline from a genuine
// backend fault so callers can tell "don't retry" from "transient".
func (c *OllamaClient) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return query.ErrInferenceTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &query.InferenceError{Message: err.Error()}
}

// Generate blocks until the backend completes a full response.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (*ports.GenerateResult, error) {
	started := time.Now()
	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		inferenceDuration.WithLabelValues("full", "error").Observe(time.Since(started).Seconds())
		return nil, err
	}
	defer resp.Body.Close()

	var frame generateFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		inferenceDuration.WithLabelValues("full", "error").Observe(time.Since(started).Seconds())
		if mapped := c.mapTransportError(err); errors.Is(mapped, query.ErrInferenceTimeout) {
			return nil, mapped
		}
		return nil, &query.InferenceError{Message: "malformed backend response: " + err.Error()}
	}
	if frame.Error != "" {
		inferenceDuration.WithLabelValues("full", "error").Observe(time.Since(started).Seconds())
		return nil, &query.InferenceError{Message: frame.Error}
	}

	elapsed := time.Since(started).Seconds()
	inferenceDuration.WithLabelValues("full", "ok").Observe(elapsed)
	return &ports.GenerateResult{Text: frame.Response, Model: c.model, Duration: elapsed}, nil
}

// GenerateStream relays NDJSON frames from the backend as they arrive,
// preserving order. The returned channel is closed after exactly one
// terminal frame: ChunkDone on clean end-of-stream, ChunkError when the
// connection drops or the backend reports a failure mid-stream.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string) (<-chan query.StreamChunk, error) {
	started := time.Now()
	resp, err := c.post(ctx, prompt, true)
	if err != nil {
		inferenceDuration.WithLabelValues("stream", "error").Observe(time.Since(started).Seconds())
		return nil, err
	}

	out := make(chan query.StreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var frame generateFrame
			if err := json.Unmarshal(line, &frame); err != nil {
				c.failStream(ctx, out, started, &query.InferenceError{Message: "malformed stream frame: " + err.Error()})
				return
			}
			if frame.Error != "" {
				c.failStream(ctx, out, started, &query.InferenceError{Message: frame.Error})
				return
			}
			if frame.Response != "" {
				select {
				case out <- query.StreamChunk{Type: query.ChunkToken, Content: frame.Response}:
				case <-ctx.Done():
					return
				}
			}
			if frame.Done {
				inferenceDuration.WithLabelValues("stream", "ok").Observe(time.Since(started).Seconds())
				select {
				case out <- query.StreamChunk{Type: query.ChunkDone}:
				case <-ctx.Done():
				}
				return
			}
		}
		// Scanner stopped before a done frame: connection dropped or the
		// deadline fired. Surface a terminal error, never silent truncation.
		err := scanner.Err()
		switch {
		case err == nil:
			err = query.ErrStreamInterrupted
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = query.ErrInferenceTimeout
		case errors.Is(err, context.Canceled):
			return
		default:
			err = fmt.Errorf("%w: %v", query.ErrStreamInterrupted, err)
		}
		c.failStream(ctx, out, started, err)
	}()

	return out, nil
}

func (c *OllamaClient) failStream(ctx context.Context, out chan<- query.StreamChunk, started time.Time, err error) {
	inferenceDuration.WithLabelValues("stream", "error").Observe(time.Since(started).Seconds())
	if c.logger != nil {
		c.logger.WithError(err).Warn("inference stream failed")
	}
	select {
	case out <- query.StreamChunk{Type: query.ChunkError, Err: err}:
	case <-ctx.Done():
	}
}

// Ping reports backend reachability. Bounded by its own short timeout
// and never retried, so a wedged backend cannot hang the health
// endpoint.
func (c *OllamaClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference backend returned status %d", resp.StatusCode)
	}
	return nil
}

var _ ports.InferenceClient = (*OllamaClient)(nil)
