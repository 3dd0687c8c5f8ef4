package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finover/riskengine/internal/analysis"
	"github.com/finover/riskengine/internal/cache"
	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/events"
	"github.com/finover/riskengine/internal/forecast"
	"github.com/finover/riskengine/internal/portfolio"
)

type fakeStore struct {
	returns   map[string][]float64
	history   []forecast.Point
	err       error
	healthErr error

	mu       sync.Mutex
	enriched int
}

func (f *fakeStore) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeStore) EnrichReturns(ctx context.Context, positions []portfolio.Position, since time.Time) ([]portfolio.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.enriched++
	f.mu.Unlock()

	out := make([]portfolio.Position, len(positions))
	copy(out, positions)
	for i := range out {
		if !out[i].HasReturns() {
			out[i].Returns = f.returns[out[i].Symbol]
		}
	}
	return out, nil
}

func (f *fakeStore) LoadRiskHistory(ctx context.Context, portfolioID string, limit int) ([]forecast.Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	alerts    []*events.Alert
	err       error
	connected bool
}

func (f *fakePublisher) Publish(ctx context.Context, alert *events.Alert) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) published() []*events.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*events.Alert(nil), f.alerts...)
}

func newTestService(opts Options) *Service {
	opts.Risk = config.DefaultRiskConfig()
	opts.Source = "test"
	return NewService(opts)
}

func rawPosition(symbol, sector string, qty, price, risk float64) map[string]interface{} {
	return map[string]interface{}{
		"symbol":     symbol,
		"sector":     sector,
		"quantity":   qty,
		"price":      price,
		"risk_score": risk,
	}
}

func twoPositions() []map[string]interface{} {
	return []map[string]interface{}{
		rawPosition("AAPL", "Tech", 10, 100, 0.2),
		rawPosition("XOM", "Energy", 5, 200, 0.8),
	}
}

func concentratedPositions() []map[string]interface{} {
	return []map[string]interface{}{rawPosition("NVDA", "Tech", 10, 100, 0.9)}
}

func TestWeightedRisk(t *testing.T) {
	svc := newTestService(Options{})

	result, err := svc.WeightedRisk(context.Background(), PortfolioRequest{Positions: twoPositions()})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.PortfolioRisk, 1e-9)
	require.Len(t, result.Details, 2)
	assert.Equal(t, "AAPL", result.Details[0].Symbol)
	assert.InDelta(t, 0.5, result.Details[0].Weight, 1e-9)
}

func TestWeightedRisk_MalformedField(t *testing.T) {
	svc := newTestService(Options{})
	positions := []map[string]interface{}{{"symbol": "AAPL", "quantity": "ten", "price": 100.0}}

	_, err := svc.WeightedRisk(context.Background(), PortfolioRequest{Positions: positions})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	var fieldErr *portfolio.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "quantity", fieldErr.Field)
}

func TestDecodePositions_AppliesConfiguredDefaults(t *testing.T) {
	rc := config.DefaultRiskConfig()
	rc.DefaultSector = "Unclassified"
	rc.DefaultBeta = 1.2
	svc := NewService(Options{Risk: rc})

	positions, err := svc.DecodePositions([]map[string]interface{}{{"symbol": "X", "quantity": 1.0, "price": 2.0}})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "Unclassified", positions[0].Sector)
	assert.Equal(t, 1.2, positions[0].Beta)
	assert.Equal(t, 0.0, positions[0].RiskScore)
}

func TestAdvancedRisk(t *testing.T) {
	svc := newTestService(Options{})
	positions := []map[string]interface{}{
		{"symbol": "A", "quantity": 1.0, "price": 100.0, "volatility": 0.2, "beta": 1.0},
		{"symbol": "B", "quantity": 1.0, "price": 100.0, "volatility": 0.2, "beta": 1.0},
	}

	result, err := svc.AdvancedRisk(context.Background(), PortfolioRequest{Positions: positions})
	require.NoError(t, err)
	require.NotNil(t, result.PortfolioVolatility)
	assert.InDelta(t, 1.0, result.WeightedBeta, 1e-9)
}

func TestAdvancedRisk_EnrichRequiresStore(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.AdvancedRisk(context.Background(), PortfolioRequest{Positions: twoPositions(), EnrichReturns: true})
	assert.ErrorIs(t, err, ErrNoHistoryStore)
}

func TestAdvancedRisk_EnrichFromStore(t *testing.T) {
	store := &fakeStore{returns: map[string][]float64{
		"AAPL": {0.01, 0.02, -0.01, 0.03},
		"XOM":  {0.02, 0.04, -0.02, 0.06},
	}}
	svc := newTestService(Options{Store: store})

	result, err := svc.AdvancedRisk(context.Background(), PortfolioRequest{Positions: twoPositions(), EnrichReturns: true})
	require.NoError(t, err)
	assert.Equal(t, 1, store.enriched)
	assert.NotNil(t, result.PortfolioVolatility)

	store.err = errors.New("db down")
	_, err = svc.AdvancedRisk(context.Background(), PortfolioRequest{Positions: twoPositions(), EnrichReturns: true})
	require.Error(t, err)
	assert.False(t, IsInvalidInput(err))
}

func TestAnalyze_PublishesSuggestions(t *testing.T) {
	pub := &fakePublisher{connected: true}
	svc := newTestService(Options{Publisher: pub})

	result, err := svc.Analyze(context.Background(), PortfolioRequest{
		Positions:   concentratedPositions(),
		PortfolioID: "growth",
	})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 3)

	alerts := pub.published()
	require.Len(t, alerts, 3)
	for i, alert := range alerts {
		assert.Equal(t, events.AlertTypeSuggestion, alert.Type)
		assert.Equal(t, "growth", alert.PortfolioID)
		assert.Equal(t, "test", alert.Source)
		assert.Equal(t, result.Suggestions[i], alert.Message)
	}
}

func TestAnalyze_ThresholdOverride(t *testing.T) {
	svc := newTestService(Options{})
	positions := []map[string]interface{}{
		rawPosition("A", "Tech", 1, 100, 0.55),
		rawPosition("B", "Energy", 1, 100, 0.1),
	}

	byConfig, err := svc.Analyze(context.Background(), PortfolioRequest{Positions: positions})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, byConfig.HighRiskPercentage, 1e-9)

	strict := 0.6
	byOverride, err := svc.Analyze(context.Background(), PortfolioRequest{Positions: positions, HighRiskThreshold: &strict})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, byOverride.HighRiskPercentage, 1e-9)

	invalid := 1.5
	_, err = svc.Analyze(context.Background(), PortfolioRequest{Positions: positions, HighRiskThreshold: &invalid})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyze_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	svc := newTestService(Options{Publisher: pub})

	result, err := svc.Analyze(context.Background(), PortfolioRequest{Positions: concentratedPositions()})
	require.NoError(t, err)
	assert.Len(t, result.Suggestions, 3)
}

func TestAnalyze_ServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := &fakePublisher{connected: true}
	svc := newTestService(Options{
		Cache:     cache.NewResultCache(client, time.Minute, "test"),
		Publisher: pub,
	})
	req := PortfolioRequest{Positions: concentratedPositions()}

	first, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, pub.published(), 3, "cached analyses are not re-published")
	assert.Len(t, mr.Keys(), 1)
}

func TestSimulate(t *testing.T) {
	pub := &fakePublisher{connected: true}
	svc := newTestService(Options{Publisher: pub})

	result, err := svc.Simulate(context.Background(), SimulationRequest{
		Positions: []map[string]interface{}{rawPosition("AAPL", "Tech", 10, 100, 0.2)},
		Change:    rawPosition("XOM", "Energy", 5, 200, 0.8),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, result.OldRisk, 1e-9)
	assert.InDelta(t, 0.5, result.NewRisk, 1e-9)
	assert.Equal(t, analysis.SummaryIncreased, result.Summary)

	alerts := pub.published()
	require.Len(t, alerts, 1)
	assert.Equal(t, events.AlertTypeRiskIncrease, alerts[0].Type)
}

func TestSimulate_RemoveMissingSymbol(t *testing.T) {
	pub := &fakePublisher{connected: true}
	svc := newTestService(Options{Publisher: pub})

	result, err := svc.Simulate(context.Background(), SimulationRequest{
		Positions: twoPositions(),
		Change:    map[string]interface{}{"symbol": "TSLA"},
		Action:    "remove",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.RiskChange)
	assert.Equal(t, analysis.SummaryUnchanged, result.Summary)
	assert.Empty(t, pub.published())
}

func TestSimulate_MalformedChange(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.Simulate(context.Background(), SimulationRequest{
		Positions: twoPositions(),
		Change:    map[string]interface{}{"symbol": "TSLA", "price": true},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestForecast(t *testing.T) {
	pub := &fakePublisher{connected: true}
	svc := newTestService(Options{Publisher: pub})
	periods := 2

	trend, err := svc.Forecast(context.Background(), ForecastRequest{
		History:         []forecast.Point{{Label: "t1", RiskScore: 0.1}, {Label: "t2", RiskScore: 0.2}, {Label: "t3", RiskScore: 0.3}},
		ForecastPeriods: &periods,
	})
	require.NoError(t, err)

	require.Len(t, trend.Predictions, 2)
	assert.InDelta(t, 0.5, trend.Predictions[1], 1e-9)
	assert.True(t, trend.HasWarning())
	require.Len(t, pub.published(), 1)
	assert.Equal(t, events.AlertTypeTrendWarning, pub.published()[0].Type)
}

func TestForecast_DefaultPeriods(t *testing.T) {
	svc := newTestService(Options{})

	trend, err := svc.Forecast(context.Background(), ForecastRequest{
		History: []forecast.Point{{Label: "t1", RiskScore: 0.3}, {Label: "t2", RiskScore: 0.3}},
	})
	require.NoError(t, err)
	assert.Len(t, trend.Predictions, forecast.DefaultPeriods)
	assert.False(t, trend.HasWarning())
}

func TestForecastPortfolio(t *testing.T) {
	svc := newTestService(Options{})
	_, err := svc.ForecastPortfolio(context.Background(), "growth", nil)
	assert.ErrorIs(t, err, ErrNoHistoryStore)

	store := &fakeStore{history: []forecast.Point{{Label: "a", RiskScore: 0.3}, {Label: "b", RiskScore: 0.3}}}
	svc = newTestService(Options{Store: store})

	_, err = svc.ForecastPortfolio(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	periods := 3
	trend, err := svc.ForecastPortfolio(context.Background(), "growth", &periods)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.3, 0.3}, roundAll(trend.Predictions))

	store.err = errors.New("query failed")
	_, err = svc.ForecastPortfolio(context.Background(), "growth", nil)
	assert.Error(t, err)
}

func TestTailRisk(t *testing.T) {
	svc := newTestService(Options{})
	confidence := 0.8

	stats, err := svc.TailRisk(context.Background(), TailRiskRequest{
		Returns:    []float64{0.04, -0.05, 0.01, -0.02, 0.03},
		Confidence: &confidence,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.026, stats.VaR, 1e-9)
	assert.InDelta(t, 0.05, stats.CVaR, 1e-9)
	assert.Equal(t, 0.8, stats.Confidence)
	assert.Equal(t, 5, stats.SampleSize)
}

func TestTailRisk_Confidence(t *testing.T) {
	svc := newTestService(Options{})

	stats, err := svc.TailRisk(context.Background(), TailRiskRequest{Returns: []float64{}})
	require.NoError(t, err)
	assert.Equal(t, 0.95, stats.Confidence)
	assert.Equal(t, 0.0, stats.VaR)

	for _, c := range []float64{0, 1, -0.5, 1.5} {
		_, err := svc.TailRisk(context.Background(), TailRiskRequest{Returns: []float64{0.1}, Confidence: &c})
		assert.ErrorIs(t, err, ErrInvalidInput, "confidence %v", c)
	}
}

func TestHealth(t *testing.T) {
	svc := newTestService(Options{})
	assert.Equal(t, map[string]string{
		"database": StatusNotConfigured,
		"cache":    StatusNotConfigured,
		"alerts":   StatusNotConfigured,
	}, svc.Health(context.Background()))
	assert.False(t, svc.HasHistory())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc = newTestService(Options{
		Store:     &fakeStore{healthErr: errors.New("ping failed")},
		Cache:     cache.NewResultCache(client, time.Minute, "test"),
		Publisher: &fakePublisher{connected: false},
	})
	status := svc.Health(context.Background())

	assert.True(t, svc.HasHistory())
	assert.Equal(t, StatusUnhealthy, status["database"])
	assert.Equal(t, StatusHealthy, status["cache"])
	assert.Equal(t, StatusUnhealthy, status["alerts"])
}

func roundAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(int64(v*1e9+0.5)) / 1e9
	}
	return out
}
