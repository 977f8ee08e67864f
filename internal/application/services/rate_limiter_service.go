package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// RateLimiterService implements ports.RateLimiter with a fixed-window
// counter per client identity. Fixed windows can admit up to 2x the
// limit across a window boundary; that is an accepted trade-off for
// O(1) bookkeeping per request.
type RateLimiterService struct {
	repo    ports.RateLimitRepository
	limit   int
	window  time.Duration
	logger  *logrus.Logger
	allowed atomic.Int64
	denied  atomic.Int64
}

// RateLimiterConfig groups configuration parameters for the rate limiter.
type RateLimiterConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

func NewRateLimiterService(repo ports.RateLimitRepository, cfg *RateLimiterConfig, logger *logrus.Logger) *RateLimiterService {
	// Apply defaults
	limit := 60
	w := time.Minute
	if cfg != nil {
		if cfg.RequestsPerWindow > 0 {
			limit = cfg.RequestsPerWindow
		}
		if cfg.Window > 0 {
			w = cfg.Window
		}
	}
	return &RateLimiterService{repo: repo, limit: limit, window: w, logger: logger}
}

// Allow consumes one request unit for identity and reports admission.
// A repository fault fails open: query serving must not depend on the
// counter store being up.
func (s *RateLimiterService) Allow(ctx context.Context, identity string) (bool, int, int, time.Time, error) {
	ttl := s.window * 2 // retain overlap window
	count, windowStart, err := s.repo.IncrementWindow(ctx, identity, s.window, ttl)
	reset := windowStart.Add(s.window)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("identity", identity).WithError(err).Error("rate limiter: failed to increment window")
		}
		// fail open
		s.allowed.Add(1)
		return true, s.limit, s.limit, reset, err
	}
	if count > s.limit {
		s.denied.Add(1)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"identity": identity, "count": count, "limit": s.limit}).Debug("rate limit exceeded")
		}
		return false, 0, s.limit, reset, nil
	}
	s.allowed.Add(1)
	return true, s.limit - count, s.limit, reset, nil
}

func (s *RateLimiterService) Stats() ports.RateLimiterStats {
	return ports.RateLimiterStats{
		Allowed: s.allowed.Load(),
		Denied:  s.denied.Load(),
		Limit:   s.limit,
		WindowS: int(s.window.Seconds()),
	}
}

func (s *RateLimiterService) ResetStats() {
	s.allowed.Store(0)
	s.denied.Store(0)
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)
