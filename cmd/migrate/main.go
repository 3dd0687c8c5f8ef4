// Database migration tool for the risk history tables
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/history"
)

func main() {
	command := flag.String("command", "migrate", "Command to run: migrate or status")
	configPath := flag.String("config", "", "Path to configuration file")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Database connection URL (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	dsn := *dbURL
	if dsn == "" {
		dsn = cfg.Database.ConnString()
	}

	if err := run(context.Background(), *command, dsn); err != nil {
		log.Error().Err(err).Str("command", *command).Msg("Migration command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, command, dsn string) error {
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}()

	if err := database.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := history.NewMigrator(database)

	switch command {
	case "migrate":
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("applied", applied).Int("version", version).Msg("Migration complete")
		return nil
	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATUS\tDESCRIPTION")
		for _, s := range status {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, state, s.Description)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown command %q (usage: migrate -command=[migrate|status])", command)
	}
}
