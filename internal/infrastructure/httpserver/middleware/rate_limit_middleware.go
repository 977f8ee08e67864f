package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/frcrag/frcrag/internal/core/domain/query"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/frcrag/frcrag/internal/infrastructure/httpserver/helpers"
)

// RateLimitMiddleware performs admission before any expensive pipeline
// work. A denial is a structured 429 with Retry-After, not an error.
type RateLimitMiddleware struct {
	rateLimiter ports.RateLimiter
	logger      *logrus.Logger
}

func NewRateLimitMiddleware(rateLimiter ports.RateLimiter, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter, logger: logger}
}

func (r *RateLimitMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := helpers.GetClientIdentity(c)

			allowed, remaining, limit, reset, rlErr := r.rateLimiter.Allow(c.Request().Context(), identity)
			// Set standard rate limit headers when available
			c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			c.Response().Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

			if rlErr != nil {
				if r.logger != nil {
					r.logger.WithError(rlErr).WithField("identity", identity).Warn("rate limiter error; allowing request (fail-open)")
				}
				return next(c)
			}

			if !allowed {
				retryAfter := time.Until(reset)
				if retryAfter < 0 {
					retryAfter = 0
				}
				denied := &query.RateLimitedError{RetryAfter: retryAfter}
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds()+0.5)))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error": map[string]any{
						"kind":        "rate_limited",
						"message":     denied.Error(),
						"retry_after": int(retryAfter.Seconds() + 0.5),
					},
				})
			}
			return next(c)
		}
	}
}
