package middleware

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/frcrag/frcrag/internal/infrastructure/httpserver/helpers"
)

// IdentityMiddleware resolves the ClientIdentity used for rate limiting.
// A valid API-key JWT (Authorization: Bearer, HS256, subject set) yields
// a key-scoped identity; anything else falls back to the client IP.
// Identities are transient: nothing about them survives the process.
type IdentityMiddleware struct {
	cfg    IdentityConfig
	logger *logrus.Logger
}

func NewIdentityMiddleware(cfg IdentityConfig, logger *logrus.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{cfg: cfg, logger: logger}
}

func (m *IdentityMiddleware) Resolve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sub, ok := m.subjectFromToken(c); ok {
				helpers.SetClientIdentity(c, "key:"+sub, "api_key")
				return next(c)
			}
			helpers.SetClientIdentity(c, "ip:"+helpers.ClientIP(c.Request(), m.cfg.TrustProxy), "ip")
			return next(c)
		}
	}
}

func (m *IdentityMiddleware) subjectFromToken(c echo.Context) (string, bool) {
	if m.cfg.APIKeySecret == "" {
		return "", false
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	raw, found := strings.CutPrefix(auth, "Bearer ")
	if !found || raw == "" {
		return "", false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.cfg.APIKeySecret), nil
	})
	if err != nil || !token.Valid {
		if m.logger != nil {
			m.logger.WithError(err).Debug("invalid API key token, falling back to IP identity")
		}
		return "", false
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}
