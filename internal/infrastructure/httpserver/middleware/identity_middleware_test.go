package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/frcrag/frcrag/internal/infrastructure/httpserver/helpers"
	mw "github.com/frcrag/frcrag/internal/infrastructure/httpserver/middleware"
)

func resolveIdentity(t *testing.T, cfg mw.IdentityConfig, mutate func(*http.Request)) (identity, source string) {
	t.Helper()
	e := echo.New()
	handler := mw.NewIdentityMiddleware(cfg, nil).Resolve()(func(c echo.Context) error {
		identity = helpers.GetClientIdentity(c)
		source, _ = helpers.GetIdentitySourceRaw(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	return identity, source
}

func signedToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestResolve_ValidAPIKeyToken(t *testing.T) {
	cfg := mw.IdentityConfig{APIKeySecret: "test-secret"}
	identity, source := resolveIdentity(t, cfg, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+signedToken(t, "test-secret", "team-254"))
	})
	if identity != "key:team-254" {
		t.Fatalf("identity = %q", identity)
	}
	if source != "api_key" {
		t.Fatalf("source = %q", source)
	}
}

func TestResolve_InvalidTokenFallsBackToIP(t *testing.T) {
	cfg := mw.IdentityConfig{APIKeySecret: "test-secret"}
	identity, source := resolveIdentity(t, cfg, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+signedToken(t, "wrong-secret", "team-254"))
	})
	if identity != "ip:203.0.113.7" {
		t.Fatalf("identity = %q", identity)
	}
	if source != "ip" {
		t.Fatalf("source = %q", source)
	}
}

func TestResolve_NoTokenUsesIP(t *testing.T) {
	identity, _ := resolveIdentity(t, mw.IdentityConfig{}, nil)
	if identity != "ip:203.0.113.7" {
		t.Fatalf("identity = %q", identity)
	}
}

func TestResolve_ForwardedHeaderOnlyWhenTrusted(t *testing.T) {
	setHeader := func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	}

	identity, _ := resolveIdentity(t, mw.IdentityConfig{TrustProxy: true}, setHeader)
	if identity != "ip:198.51.100.9" {
		t.Fatalf("trusted proxy identity = %q", identity)
	}

	identity, _ = resolveIdentity(t, mw.IdentityConfig{TrustProxy: false}, setHeader)
	if identity != "ip:203.0.113.7" {
		t.Fatalf("untrusted proxy must ignore the header, identity = %q", identity)
	}
}

func TestResolve_TokenWithoutSubjectFallsBack(t *testing.T) {
	cfg := mw.IdentityConfig{APIKeySecret: "test-secret"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	identity, source := resolveIdentity(t, cfg, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	})
	if source != "ip" || identity != "ip:203.0.113.7" {
		t.Fatalf("identity = %q, source = %q", identity, source)
	}
}
