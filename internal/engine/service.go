// Package engine runs the risk analytics behind every outer surface. It
// decodes raw requests with the configured defaults, serves repeated
// requests from the result cache, loads history when a store is present and
// publishes alerts for the warnings it produces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/finover/riskengine/internal/analysis"
	"github.com/finover/riskengine/internal/cache"
	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/events"
	"github.com/finover/riskengine/internal/forecast"
	"github.com/finover/riskengine/internal/metrics"
	"github.com/finover/riskengine/internal/portfolio"
	"github.com/finover/riskengine/internal/risk"
)

// DefaultHistoryLimit is the number of recorded risk scores a stored
// forecast is fitted on
const DefaultHistoryLimit = 30

// Component statuses reported by Health
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not_configured"
)

var (
	// ErrInvalidInput marks request errors the caller can fix
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoHistoryStore is returned by operations that need stored history
	// when the service runs without a database
	ErrNoHistoryStore = errors.New("history store not configured")
)

// IsInvalidInput reports whether err was caused by the request itself
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, portfolio.ErrMalformedField)
}

// HistoryStore loads stored return series and risk history
type HistoryStore interface {
	Health(ctx context.Context) error
	EnrichReturns(ctx context.Context, positions []portfolio.Position, since time.Time) ([]portfolio.Position, error)
	LoadRiskHistory(ctx context.Context, portfolioID string, limit int) ([]forecast.Point, error)
}

// AlertPublisher delivers alerts to subscribers
type AlertPublisher interface {
	Publish(ctx context.Context, alert *events.Alert) error
	IsConnected() bool
}

// Options configures a Service. Store, Cache and Publisher are optional.
type Options struct {
	Risk      config.RiskConfig
	Store     HistoryStore
	Cache     *cache.ResultCache
	Publisher AlertPublisher
	Source    string
}

// Service provides the risk analytics operations
type Service struct {
	defaults   portfolio.FieldDefaults
	weights    risk.CompositeWeights
	threshold  float64
	confidence float64
	periods    int
	lookback   time.Duration

	store  HistoryStore
	cache  *cache.ResultCache
	alerts AlertPublisher
	source string
	logger zerolog.Logger
}

// NewService creates a new risk service
func NewService(opts Options) *Service {
	rc := opts.Risk
	source := opts.Source
	if source == "" {
		source = "riskengine"
	}

	return &Service{
		defaults:   rc.FieldDefaults(),
		weights:    rc.CompositeWeights(),
		threshold:  rc.HighRiskThreshold,
		confidence: rc.Confidence,
		periods:    rc.ForecastPeriods,
		lookback:   rc.Lookback(),
		store:      opts.Store,
		cache:      opts.Cache,
		alerts:     opts.Publisher,
		source:     source,
		logger:     config.NewLogger("engine").With().Str("source", source).Logger(),
	}
}

// HasHistory reports whether a history store is configured
func (s *Service) HasHistory() bool {
	return s.store != nil
}

// DecodePositions applies the configured defaults table to raw positions
func (s *Service) DecodePositions(raws []map[string]interface{}) ([]portfolio.Position, error) {
	return portfolio.Decode(raws, s.defaults)
}

// WeightedRisk computes the value-weighted portfolio risk
func (s *Service) WeightedRisk(ctx context.Context, req PortfolioRequest) (result risk.WeightedRisk, err error) {
	defer s.observe(metrics.OperationWeightedRisk, time.Now(), &err)

	positions, err := s.DecodePositions(req.Positions)
	if err != nil {
		return risk.WeightedRisk{}, err
	}

	result, err = cached(ctx, s, metrics.OperationWeightedRisk, positions, func() (risk.WeightedRisk, error) {
		return risk.WeightedPortfolioRisk(positions), nil
	})
	if err != nil {
		return risk.WeightedRisk{}, err
	}

	metrics.RecordPortfolioRisk(metrics.OperationWeightedRisk, result.PortfolioRisk, len(positions))
	return result, nil
}

// AdvancedRisk computes the correlation-aware risk estimate
func (s *Service) AdvancedRisk(ctx context.Context, req PortfolioRequest) (result risk.AdvancedRisk, err error) {
	defer s.observe(metrics.OperationAdvancedRisk, time.Now(), &err)

	positions, err := s.DecodePositions(req.Positions)
	if err != nil {
		return risk.AdvancedRisk{}, err
	}

	if req.EnrichReturns {
		if s.store == nil {
			return risk.AdvancedRisk{}, ErrNoHistoryStore
		}
		positions, err = s.store.EnrichReturns(ctx, positions, time.Now().Add(-s.lookback))
		if err != nil {
			return risk.AdvancedRisk{}, fmt.Errorf("failed to enrich return series: %w", err)
		}
	}

	key := struct {
		Positions []portfolio.Position  `json:"positions"`
		Weights   risk.CompositeWeights `json:"weights"`
	}{positions, s.weights}

	result, err = cached(ctx, s, metrics.OperationAdvancedRisk, key, func() (risk.AdvancedRisk, error) {
		return risk.AdvancedPortfolioRiskWith(positions, s.weights), nil
	})
	if err != nil {
		return risk.AdvancedRisk{}, err
	}

	metrics.RecordPortfolioRisk(metrics.OperationAdvancedRisk, result.PortfolioRisk, len(positions))
	return result, nil
}

// Analyze runs the concentration and diversification analysis. Suggestions
// of a freshly computed analysis are published as alerts.
func (s *Service) Analyze(ctx context.Context, req PortfolioRequest) (result analysis.Analysis, err error) {
	defer s.observe(metrics.OperationAnalysis, time.Now(), &err)

	positions, err := s.DecodePositions(req.Positions)
	if err != nil {
		return analysis.Analysis{}, err
	}
	threshold, err := s.resolveThreshold(req.HighRiskThreshold)
	if err != nil {
		return analysis.Analysis{}, err
	}

	key := struct {
		Positions []portfolio.Position `json:"positions"`
		Threshold float64              `json:"threshold"`
	}{positions, threshold}

	result, err = cached(ctx, s, metrics.OperationAnalysis, key, func() (analysis.Analysis, error) {
		fresh := analysis.AnalyzePortfolio(positions, threshold)
		metrics.RecordSuggestions(fresh.Suggestions)
		s.publish(ctx, req.PortfolioID, events.AnalysisAlerts(s.source, fresh)...)
		return fresh, nil
	})
	if err != nil {
		return analysis.Analysis{}, err
	}

	return result, nil
}

// Simulate applies a hypothetical change and reports the change in risk
func (s *Service) Simulate(ctx context.Context, req SimulationRequest) (result analysis.Simulation, err error) {
	defer s.observe(metrics.OperationSimulation, time.Now(), &err)

	positions, err := s.DecodePositions(req.Positions)
	if err != nil {
		return analysis.Simulation{}, err
	}
	change, err := portfolio.FromMap(0, req.Change, s.defaults)
	if err != nil {
		return analysis.Simulation{}, fmt.Errorf("change: %w", err)
	}
	threshold, err := s.resolveThreshold(req.HighRiskThreshold)
	if err != nil {
		return analysis.Simulation{}, err
	}

	action := analysis.Action(req.Action)
	if action == "" {
		action = analysis.ActionAdd
	}

	result = analysis.SimulatePortfolioChange(positions, change, action, threshold)

	metrics.RecordPortfolioRisk(metrics.OperationSimulation, result.NewRisk, len(positions))
	s.publish(ctx, req.PortfolioID, events.SimulationAlert(s.source, result))
	return result, nil
}

// Forecast extrapolates the given risk history
func (s *Service) Forecast(ctx context.Context, req ForecastRequest) (result forecast.Trend, err error) {
	defer s.observe(metrics.OperationForecast, time.Now(), &err)

	result = forecast.PredictRiskTrend(req.History, s.resolvePeriods(req.ForecastPeriods))
	s.recordTrend(ctx, req.PortfolioID, result)
	return result, nil
}

// ForecastPortfolio extrapolates the risk history stored for a portfolio
func (s *Service) ForecastPortfolio(ctx context.Context, portfolioID string, periods *int) (result forecast.Trend, err error) {
	defer s.observe(metrics.OperationForecast, time.Now(), &err)

	if portfolioID == "" {
		return forecast.Trend{}, fmt.Errorf("%w: portfolio id is required", ErrInvalidInput)
	}
	if s.store == nil {
		return forecast.Trend{}, ErrNoHistoryStore
	}

	history, err := s.store.LoadRiskHistory(ctx, portfolioID, DefaultHistoryLimit)
	if err != nil {
		return forecast.Trend{}, fmt.Errorf("failed to load risk history: %w", err)
	}

	result = forecast.PredictRiskTrend(history, s.resolvePeriods(periods))
	s.recordTrend(ctx, portfolioID, result)
	return result, nil
}

// TailRisk computes VaR and CVaR of a return sample
func (s *Service) TailRisk(ctx context.Context, req TailRiskRequest) (result risk.TailStatistics, err error) {
	defer s.observe(metrics.OperationTailRisk, time.Now(), &err)

	confidence := s.confidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return risk.TailStatistics{}, fmt.Errorf("%w: confidence must be between 0 and 1, got %v", ErrInvalidInput, confidence)
	}

	key := struct {
		Returns    []float64 `json:"returns"`
		Confidence float64   `json:"confidence"`
	}{req.Returns, confidence}

	return cached(ctx, s, metrics.OperationTailRisk, key, func() (risk.TailStatistics, error) {
		return risk.CalculateTailStatistics(req.Returns, confidence), nil
	})
}

// Health reports the status of the optional backends
func (s *Service) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"database": StatusNotConfigured,
		"cache":    StatusNotConfigured,
		"alerts":   StatusNotConfigured,
	}

	if s.store != nil {
		status["database"] = StatusHealthy
		if err := s.store.Health(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Database health check failed")
			status["database"] = StatusUnhealthy
		}
	}
	if s.cache != nil {
		status["cache"] = StatusHealthy
		if err := s.cache.Health(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Cache health check failed")
			status["cache"] = StatusUnhealthy
		}
	}
	if s.alerts != nil {
		status["alerts"] = StatusHealthy
		if !s.alerts.IsConnected() {
			status["alerts"] = StatusUnhealthy
		}
	}

	return status
}

func (s *Service) resolveThreshold(override *float64) (float64, error) {
	if override == nil {
		return s.threshold, nil
	}
	t := *override
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, fmt.Errorf("%w: high_risk_threshold must be between 0 and 1, got %v", ErrInvalidInput, t)
	}
	return t, nil
}

func (s *Service) resolvePeriods(override *int) int {
	if override == nil {
		return s.periods
	}
	return *override
}

func (s *Service) recordTrend(ctx context.Context, portfolioID string, trend forecast.Trend) {
	if !trend.HasWarning() {
		return
	}
	metrics.RecordTrendWarning()
	s.publish(ctx, portfolioID, events.TrendAlert(s.source, trend))
}

// publish delivers alerts best effort; a failed publish never fails the operation
func (s *Service) publish(ctx context.Context, portfolioID string, alerts ...*events.Alert) {
	if s.alerts == nil {
		return
	}
	for _, alert := range alerts {
		if alert == nil {
			continue
		}
		if portfolioID != "" {
			alert.WithPortfolio(portfolioID)
		}
		if err := s.alerts.Publish(ctx, alert); err != nil {
			s.logger.Warn().Err(err).Str("type", string(alert.Type)).Msg("Failed to publish alert")
			metrics.RecordError("alert_publish", "engine")
			continue
		}
		metrics.RecordAlert(string(alert.Type))
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	metrics.RecordOperation(operation, time.Since(start), *err)
	if *err != nil {
		s.logger.Debug().Err(*err).Str("operation", operation).Msg("Operation failed")
	}
}

// cached serves operation from the result cache when possible and stores
// fresh results. Without a cache compute always runs.
func cached[T any](ctx context.Context, s *Service, operation string, request interface{}, compute func() (T, error)) (T, error) {
	if s.cache == nil {
		return compute()
	}

	key, err := s.cache.Key(operation, request)
	if err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("Failed to derive cache key")
		return compute()
	}

	var hit T
	if s.cache.Get(ctx, key, &hit) {
		metrics.RecordCacheLookup(operation, true)
		return hit, nil
	}
	metrics.RecordCacheLookup(operation, false)

	result, err := compute()
	if err != nil {
		return result, err
	}
	if err := s.cache.Set(ctx, key, operation, result); err != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("Failed to cache result")
	}
	return result, nil
}
