package api

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/history"
	"github.com/finover/riskengine/internal/metrics"
)

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "RiskEngine API",
		"version": s.version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetStatus returns comprehensive system status
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	components := s.engine.Health(c.Request.Context())
	systemStatus := "healthy"
	for _, status := range components {
		if status == engine.StatusUnhealthy {
			systemStatus = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     systemStatus,
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(s.startTime).Seconds(),
		"version":    s.version,
		"components": components,
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": toMB(memStats.Alloc),
				"sys_mb":   toMB(memStats.Sys),
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

// handleGetHealth returns a simple health check (for load balancers)
func (s *Server) handleGetHealth(c *gin.Context) {
	components := s.engine.Health(c.Request.Context())
	if components["database"] == engine.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleWeightedRisk(c *gin.Context) {
	var req engine.PortfolioRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.WeightedRisk(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAdvancedRisk(c *gin.Context) {
	var req engine.PortfolioRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.AdvancedRisk(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnalysis(c *gin.Context) {
	var req engine.PortfolioRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.Analyze(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req engine.SimulationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.Simulate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleForecast(c *gin.Context) {
	var req engine.ForecastRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.Forecast(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleStoredForecast forecasts from the risk history recorded for a portfolio
func (s *Server) handleStoredForecast(c *gin.Context) {
	var periods *int
	if raw := c.Query("periods"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "periods must be an integer"})
			return
		}
		periods = &n
	}

	result, err := s.engine.ForecastPortfolio(c.Request.Context(), c.Param("id"), periods)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTailRisk(c *gin.Context) {
	var req engine.TailRiskRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.engine.TailRisk(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		metrics.RecordError("bad_request", "api")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoHistoryStore), errors.Is(err, history.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		metrics.RecordError("internal", "api")
	} else {
		metrics.RecordError(strconv.Itoa(status), "api")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
