package httpserver_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/frcrag/frcrag/internal/core/domain/tunnel"
	"github.com/frcrag/frcrag/internal/infrastructure/httpserver"
	"github.com/frcrag/frcrag/test/mocks"
)

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": "secret-admin"}
}

func TestAdminRoutes_RequireCredential(t *testing.T) {
	srv := newTestServer(httpserver.ServerDeps{
		QueryService: &mocks.QueryServiceMock{},
		AnswerCache:  &statsCacheMock{},
		RateLimiter:  &mocks.RateLimiterMock{},
	})

	for _, path := range []string{
		"/api/v1/admin/cache/clear",
		"/api/v1/admin/stats/reset",
		"/api/v1/admin/tunnel/start",
		"/api/v1/admin/tunnel/stop",
	} {
		rec := doJSON(t, srv, http.MethodPost, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d", path, rec.Code)
		}
		rec = doJSON(t, srv, http.MethodPost, path, "", map[string]string{"X-Admin-Token": "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status = %d", path, rec.Code)
		}
	}
}

func TestClearCache(t *testing.T) {
	cache := &statsCacheMock{}
	srv := newTestServer(httpserver.ServerDeps{
		QueryService: &mocks.QueryServiceMock{},
		AnswerCache:  cache,
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/cache/clear", "", adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !cache.cleared {
		t.Fatal("cache was not cleared")
	}
}

func TestResetStats(t *testing.T) {
	cache := &statsCacheMock{}
	srv := newTestServer(httpserver.ServerDeps{
		QueryService: &mocks.QueryServiceMock{},
		AnswerCache:  cache,
		RateLimiter:  &mocks.RateLimiterMock{},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/stats/reset", "", adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !cache.statsReset {
		t.Fatal("cache stats were not reset")
	}
}

func TestTunnelEndpoints(t *testing.T) {
	started := false
	stopped := false
	manager := &mocks.TunnelManagerMock{
		StartFn: func(ctx context.Context) (tunnel.State, error) {
			started = true
			return tunnel.State{Status: tunnel.StatusStarting, Provider: "cloudflare"}, nil
		},
		StopFn: func() tunnel.State {
			stopped = true
			return tunnel.State{Status: tunnel.StatusStopped, Provider: "cloudflare"}
		},
		StateFn: func() tunnel.State {
			return tunnel.State{Status: tunnel.StatusRunning, PublicURL: "https://x.trycloudflare.com"}
		},
	}
	srv := newTestServer(httpserver.ServerDeps{
		QueryService:  &mocks.QueryServiceMock{},
		AnswerCache:   &statsCacheMock{},
		TunnelManager: manager,
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/tunnel/start", "", adminHeaders())
	if rec.Code != http.StatusOK || !started {
		t.Fatalf("start: status = %d, started = %v", rec.Code, started)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/admin/tunnel", "", adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("state: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/admin/tunnel/stop", "", adminHeaders())
	if rec.Code != http.StatusOK || !stopped {
		t.Fatalf("stop: status = %d, stopped = %v", rec.Code, stopped)
	}
}

func TestTunnelEndpoints_NotConfigured(t *testing.T) {
	srv := newTestServer(httpserver.ServerDeps{
		QueryService: &mocks.QueryServiceMock{},
		AnswerCache:  &statsCacheMock{},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/tunnel/start", "", adminHeaders())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
