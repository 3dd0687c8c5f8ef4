package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/finover/riskengine/internal/api"
	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	verify := flag.Bool("verify", false, "Validate configuration and backend connectivity, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *verify {
		validator := config.NewValidator(cfg, config.DefaultValidatorOptions())
		if err := validator.ValidateStartup(ctx); err != nil {
			log.Error().Err(err).Msg("Startup validation failed")
			os.Exit(1)
		}
		log.Info().Msg("Startup validation passed")
		return
	}

	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting RiskEngine API Server")

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}

func run(ctx context.Context, cfg *config.Config) error {
	svc, backends := engine.Connect(ctx, cfg, "riskengine-api")
	defer backends.Close()

	server := api.NewServer(api.Config{
		API:     cfg.API,
		Version: cfg.App.Version,
		Engine:  svc,
	})

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to stop metrics server")
			}
		}
		return server.Stop(shutdownCtx)
	})

	return g.Wait()
}
