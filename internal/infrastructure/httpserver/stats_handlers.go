package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// getStats reports the observable counters of the serving pipeline.
func (s *Server) getStats(c echo.Context) error {
	stats := map[string]interface{}{
		"cache":      s.answerCache.Stats(),
		"rate_limit": s.rateLimiter.Stats(),
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.tunnelManager != nil {
		stats["tunnel"] = s.tunnelManager.State()
	}
	return c.JSON(http.StatusOK, stats)
}
