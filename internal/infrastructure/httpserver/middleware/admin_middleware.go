package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenHeader = "X-Admin-Token"

// AdminMiddleware guards privileged operations (cache clear, stats
// reset, tunnel control) behind the configured credential. A bcrypt
// hash takes precedence over a plain token; with neither configured all
// privileged requests are refused.
type AdminMiddleware struct {
	cfg    AdminConfig
	logger *logrus.Logger
}

func NewAdminMiddleware(cfg AdminConfig, logger *logrus.Logger) *AdminMiddleware {
	return &AdminMiddleware{cfg: cfg, logger: logger}
}

func (m *AdminMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := c.Request().Header.Get(adminTokenHeader)
			if presented == "" || !m.verify(presented) {
				if m.logger != nil {
					m.logger.WithField("path", c.Path()).Warn("privileged operation rejected")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "admin credential required")
			}
			return next(c)
		}
	}
}

func (m *AdminMiddleware) verify(presented string) bool {
	if m.cfg.TokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(m.cfg.TokenHash), []byte(presented)) == nil
	}
	if m.cfg.Token != "" {
		return subtle.ConstantTimeCompare([]byte(m.cfg.Token), []byte(presented)) == 1
	}
	return false
}
