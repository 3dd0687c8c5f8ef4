package api

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/health", s.handleGetHealth)

		p := v1.Group("/portfolio")
		{
			p.POST("/risk", s.handleWeightedRisk)
			p.POST("/risk/advanced", s.handleAdvancedRisk)
			p.POST("/analysis", s.handleAnalysis)
			p.POST("/simulate", s.handleSimulate)
			p.POST("/forecast", s.handleForecast)
			p.GET("/:id/forecast", s.handleStoredForecast)
		}

		v1.POST("/risk/var", s.handleTailRisk)
	}

	s.router.GET("/", s.handleRoot)
}
