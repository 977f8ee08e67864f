package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	config "github.com/frcrag/frcrag/configs"
	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// HTTPRetriever talks to the document retrieval collaborator (the
// embedding/vector-store service) over its JSON API. The pipeline only
// depends on the narrow retrieve/suggest/ping contract; ingestion and
// domain mapping live entirely on the other side.
type HTTPRetriever struct {
	baseURL  string
	topK     int
	minScore float64
	http     *http.Client
	logger   *logrus.Logger
}

func NewHTTPRetriever(cfg *config.RetrievalConfig, logger *logrus.Logger) *HTTPRetriever {
	topK := 5
	if cfg.TopK > 0 {
		topK = cfg.TopK
	}
	return &HTTPRetriever{
		baseURL:  cfg.BaseURL,
		topK:     topK,
		minScore: cfg.MinScore,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type searchResponse struct {
	Results []query.Passage `json:"results"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Retrieve returns ranked passages for the question. Results below the
// minimum relevance score are dropped; an unreachable store maps to
// query.ErrRetrievalUnavailable.
func (r *HTTPRetriever) Retrieve(ctx context.Context, text string, f query.Filters) ([]query.Passage, error) {
	k := f.TopK
	if k <= 0 {
		k = r.topK
	}
	params := url.Values{}
	params.Set("q", text)
	params.Set("k", strconv.Itoa(k))
	if f.Season != "" {
		params.Set("season", f.Season)
	}

	var res searchResponse
	if err := r.getJSON(ctx, "/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}

	passages := res.Results[:0]
	for _, p := range res.Results {
		if p.Score >= r.minScore {
			passages = append(passages, p)
		}
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"results": len(passages), "k": k}).Debug("context retrieved")
	}
	return passages, nil
}

// Suggest returns ranked completions for a partial query.
func (r *HTTPRetriever) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("q", prefix)
	params.Set("limit", strconv.Itoa(limit))

	var res suggestResponse
	if err := r.getJSON(ctx, "/suggest?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Suggestions, nil
}

// Ping reports store reachability for the health surface.
func (r *HTTPRetriever) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("retrieval store returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchImage streams an image asset referenced by a passage.
func (r *HTTPRetriever) FetchImage(ctx context.Context, path string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/images/"+url.PathEscape(path), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", query.ErrRetrievalUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("image not found (status %d)", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (r *HTTPRetriever) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", query.ErrRetrievalUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: store returned status %d", query.ErrRetrievalUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("retrieval request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode retrieval response: %w", err)
	}
	return nil
}

var _ ports.ContextRetriever = (*HTTPRetriever)(nil)
var _ ports.ImageFetcher = (*HTTPRetriever)(nil)
