// Package history provides read-only lookups of price-derived return series
// and recorded portfolio risk scores. It reads two tables:
//
//	price_history(symbol TEXT, time TIMESTAMPTZ, close DOUBLE PRECISION)
//	portfolio_risk_history(portfolio_id TEXT, recorded_at TIMESTAMPTZ, risk_score DOUBLE PRECISION)
//
// The analytics packages never touch the database; the service layer uses
// this package to enrich positions before handing them to the core.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/config"
)

// DBPool is the subset of pgxpool.Pool the store needs (satisfied by pgxmock in tests)
type DBPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Open creates a connection pool from the database section and verifies it
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Database connection pool created successfully")

	return pool, nil
}
