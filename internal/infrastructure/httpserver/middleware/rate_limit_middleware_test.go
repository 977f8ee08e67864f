package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/frcrag/frcrag/internal/infrastructure/httpserver/middleware"
	"github.com/frcrag/frcrag/test/mocks"
)

func runLimited(t *testing.T, limiter *mocks.RateLimiterMock) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := mw.NewRateLimitMiddleware(limiter, nil).Handler()(func(c echo.Context) error {
		return c.String(http.StatusOK, "served")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRateLimit_AllowedRequestCarriesHeaders(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)
	limiter := &mocks.RateLimiterMock{
		AllowFn: func(ctx context.Context, identity string) (bool, int, int, time.Time, error) {
			return true, 42, 60, reset, nil
		},
	}
	rec := runLimited(t, limiter)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "42" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset missing")
	}
}

func TestRateLimit_DenialIs429WithRetryAfter(t *testing.T) {
	limiter := &mocks.RateLimiterMock{
		AllowFn: func(ctx context.Context, identity string) (bool, int, int, time.Time, error) {
			return false, 0, 60, time.Now().Add(25 * time.Second), nil
		},
	}
	rec := runLimited(t, limiter)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if !strings.Contains(rec.Body.String(), "rate_limited") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	limiter := &mocks.RateLimiterMock{
		AllowFn: func(ctx context.Context, identity string) (bool, int, int, time.Time, error) {
			return true, 60, 60, time.Now(), errors.New("redis down")
		},
	}
	rec := runLimited(t, limiter)

	if rec.Code != http.StatusOK {
		t.Fatalf("limiter fault must not reject the request, status = %d", rec.Code)
	}
}
