package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// clearCache drops every cached answer. Counters survive; only entries
// go.
func (s *Server) clearCache(c echo.Context) error {
	s.answerCache.Clear()
	if s.logger != nil {
		s.logger.Info("answer cache cleared by admin request")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

// resetStats zeroes the cache and admission counters.
func (s *Server) resetStats(c echo.Context) error {
	s.answerCache.ResetStats()
	s.rateLimiter.ResetStats()
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) tunnelState(c echo.Context) error {
	if s.tunnelManager == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tunnel is not configured")
	}
	return c.JSON(http.StatusOK, s.tunnelManager.State())
}

func (s *Server) startTunnel(c echo.Context) error {
	if s.tunnelManager == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tunnel is not configured")
	}
	state, err := s.tunnelManager.Start(c.Request().Context())
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Error("tunnel start failed")
		}
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
			"state": state,
		})
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) stopTunnel(c echo.Context) error {
	if s.tunnelManager == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tunnel is not configured")
	}
	return c.JSON(http.StatusOK, s.tunnelManager.Stop())
}
