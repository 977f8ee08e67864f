package helpers

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GetClientIdentity returns the rate-limit/cache-namespace identity
// resolved by the identity middleware. Falls back to the immediate
// remote address when the middleware did not run.
func GetClientIdentity(c echo.Context) string {
	if id, ok := GetClientIdentityRaw(c); ok && id != "" {
		return id
	}
	return ClientIP(c.Request(), false)
}

// ClientIP extracts the client IP from the request.
//
// When trustProxy is true, X-Real-IP is checked first (set by
// nginx/HAProxy), then the first entry of X-Forwarded-For. Header
// values are validated with net.ParseIP so arbitrary strings cannot be
// injected as rate-limiter keys. When trustProxy is false only
// RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
