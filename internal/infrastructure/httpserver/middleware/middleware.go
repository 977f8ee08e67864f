package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/frcrag/frcrag/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Identity  *IdentityMiddleware
	RateLimit *RateLimitMiddleware
	Admin     *AdminMiddleware
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
}

// IdentityConfig controls how client identities are resolved.
type IdentityConfig struct {
	APIKeySecret string
	TrustProxy   bool
}

// AdminConfig carries the privileged-operation credential.
type AdminConfig struct {
	Token     string
	TokenHash string
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	rateLimiter ports.RateLimiter,
	identityCfg IdentityConfig,
	adminCfg AdminConfig,
	logger *logrus.Logger,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Identity:  NewIdentityMiddleware(identityCfg, logger),
		RateLimit: NewRateLimitMiddleware(rateLimiter, logger),
		Admin:     NewAdminMiddleware(adminCfg, logger),
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
