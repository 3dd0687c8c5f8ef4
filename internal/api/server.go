// Package api exposes the risk engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/metrics"
)

// Server represents the REST API server
type Server struct {
	router    *gin.Engine
	engine    *engine.Service
	limiter   *RateLimiter
	version   string
	startTime time.Time
	server    *http.Server
}

// Config contains server configuration
type Config struct {
	API     config.APIConfig
	Version string
	Engine  *engine.Service
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	s := &Server{
		router:    router,
		engine:    cfg.Engine,
		limiter:   NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst),
		version:   cfg.Version,
		startTime: time.Now(),
	}

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(corsConfig(cfg.API.AllowedOrigins)))
	router.Use(s.limiter.Middleware())

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.API.GetAPIAddr(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it is stopped. The rate
// limiter's cleanup runs until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.limiter.StartCleanupWorker(ctx, time.Minute)

	log.Info().Str("addr", s.server.Addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}
