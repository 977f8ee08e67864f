package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)
	s.echo.GET("/images/:file", s.serveImage)

	api := s.echo.Group("/api/v1")
	api.GET("/stats", s.getStats)

	// Admission applies to pipeline work only; health, metrics and
	// image assets stay exempt.
	limited := api.Group("", s.middleware.RateLimit.Handler())
	limited.POST("/query", s.askQuery)
	limited.POST("/query/stream", s.streamQuery)
	limited.GET("/suggest", s.suggest)

	admin := api.Group("/admin", s.middleware.Admin.RequireAdmin())
	admin.POST("/cache/clear", s.clearCache)
	admin.POST("/stats/reset", s.resetStats)
	admin.GET("/tunnel", s.tunnelState)
	admin.POST("/tunnel/start", s.startTunnel)
	admin.POST("/tunnel/stop", s.stopTunnel)
}
