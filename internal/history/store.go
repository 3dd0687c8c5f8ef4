package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/forecast"
	"github.com/finover/riskengine/internal/metrics"
	"github.com/finover/riskengine/internal/portfolio"
)

// DefaultEnrichConcurrency bounds concurrent return-series lookups
const DefaultEnrichConcurrency = 4

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("history store unavailable")

// Store loads return series and risk history through a circuit breaker
type Store struct {
	db          DBPool
	breaker     *gobreaker.CircuitBreaker
	concurrency int
	logger      zerolog.Logger
}

// NewStore creates a store. A nil breaker gets the database defaults.
func NewStore(db DBPool, breaker *gobreaker.CircuitBreaker) *Store {
	if breaker == nil {
		breaker = NewBreaker("database", DefaultBreakerSettings())
	}
	return &Store{
		db:          db,
		breaker:     breaker,
		concurrency: DefaultEnrichConcurrency,
		logger:      config.NewLogger("history"),
	}
}

// Health checks database connectivity
func (s *Store) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) execute(query string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := s.breaker.Execute(fn)
	metrics.RecordHistoryQuery(query, time.Since(start))
	recordRequest(s.breaker.Name(), err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, err
}

// LoadCloses returns the closing prices of symbol since the given time, oldest first
func (s *Store) LoadCloses(ctx context.Context, symbol string, since time.Time) ([]float64, error) {
	query := `
		SELECT close
		FROM price_history
		WHERE symbol = $1 AND time >= $2
		ORDER BY time ASC
	`

	result, err := s.execute("closes", func() (interface{}, error) {
		rows, err := s.db.Query(ctx, query, symbol, since)
		if err != nil {
			return nil, fmt.Errorf("failed to query price history: %w", err)
		}
		defer rows.Close()

		var closes []float64
		for rows.Next() {
			var c float64
			if err := rows.Scan(&c); err != nil {
				return nil, fmt.Errorf("failed to scan price: %w", err)
			}
			closes = append(closes, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating price history: %w", err)
		}
		return closes, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]float64), nil
}

// LoadReturns returns the simple periodic returns of symbol since the given time
func (s *Store) LoadReturns(ctx context.Context, symbol string, since time.Time) ([]float64, error) {
	closes, err := s.LoadCloses(ctx, symbol, since)
	if err != nil {
		return nil, err
	}
	return SimpleReturns(closes), nil
}

// LoadRiskHistory returns the most recent limit risk scores recorded for a
// portfolio in chronological order, labelled with their RFC 3339 timestamp.
func (s *Store) LoadRiskHistory(ctx context.Context, portfolioID string, limit int) ([]forecast.Point, error) {
	query := `
		SELECT recorded_at, risk_score
		FROM portfolio_risk_history
		WHERE portfolio_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	result, err := s.execute("risk_history", func() (interface{}, error) {
		rows, err := s.db.Query(ctx, query, portfolioID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query risk history: %w", err)
		}
		defer rows.Close()

		var points []forecast.Point
		for rows.Next() {
			var (
				recordedAt time.Time
				score      float64
			)
			if err := rows.Scan(&recordedAt, &score); err != nil {
				return nil, fmt.Errorf("failed to scan risk history: %w", err)
			}
			points = append(points, forecast.Point{
				Label:     recordedAt.UTC().Format(time.RFC3339),
				RiskScore: score,
			})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating risk history: %w", err)
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}

	points := result.([]forecast.Point)
	slices.Reverse(points)
	return points, nil
}

// EnrichReturns returns a copy of positions in which every position without a
// return series gets one loaded from price history. Lookups run concurrently;
// the first failure cancels the rest and is returned.
func (s *Store) EnrichReturns(ctx context.Context, positions []portfolio.Position, since time.Time) ([]portfolio.Position, error) {
	enriched := slices.Clone(positions)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range enriched {
		if enriched[i].HasReturns() {
			continue
		}
		g.Go(func() error {
			returns, err := s.LoadReturns(gctx, enriched[i].Symbol, since)
			if err != nil {
				return fmt.Errorf("failed to load returns for %s: %w", enriched[i].Symbol, err)
			}
			enriched[i].Returns = returns
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("positions", len(enriched)).
		Time("since", since).
		Msg("Return series enriched")

	return enriched, nil
}

// SimpleReturns converts a price series into close-to-close returns. Steps
// from a zero price are skipped.
func SimpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}
