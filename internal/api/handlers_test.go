package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finover/riskengine/internal/analysis"
	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/forecast"
	"github.com/finover/riskengine/internal/history"
	"github.com/finover/riskengine/internal/risk"
)

func newTestServer(t *testing.T, opts engine.Options) *Server {
	t.Helper()
	opts.Risk = config.DefaultRiskConfig()
	return NewServer(Config{
		API:     config.APIConfig{AllowedOrigins: []string{"*"}},
		Version: "test",
		Engine:  engine.NewService(opts),
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

var testPositions = []map[string]interface{}{
	{"symbol": "AAPL", "quantity": 10, "price": 100, "risk_score": 0.2, "sector": "Tech"},
	{"symbol": "XOM", "quantity": 5, "price": 200, "risk_score": 0.8, "sector": "Energy"},
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	w := doJSON(t, s, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "RiskEngine API", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t, engine.Options{})

	w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, engine.StatusNotConfigured, body.Components["database"])
}

func TestWeightedRiskEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/risk", obj{"positions": testPositions})

	require.Equal(t, http.StatusOK, w.Code)
	var result risk.WeightedRisk
	decode(t, w, &result)
	assert.InDelta(t, 0.5, result.PortfolioRisk, 1e-9)
	assert.Len(t, result.Details, 2)
}

func TestWeightedRiskEndpoint_MalformedField(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	positions := []map[string]interface{}{{"symbol": "AAPL", "quantity": "10", "price": 100}}

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/risk", obj{"positions": positions})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "quantity")
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/analysis", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestAdvancedRiskEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	positions := []map[string]interface{}{
		{"symbol": "A", "quantity": 1, "price": 100, "volatility": 0.2, "beta": 1.5},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/risk/advanced", obj{"positions": positions})
	require.Equal(t, http.StatusOK, w.Code)

	var result risk.AdvancedRisk
	decode(t, w, &result)
	assert.InDelta(t, 1.5, result.WeightedBeta, 1e-9)
	require.NotNil(t, result.PortfolioVolatility)
	assert.InDelta(t, 0.2, *result.PortfolioVolatility, 1e-9)

	w = doJSON(t, s, http.MethodPost, "/api/v1/portfolio/risk/advanced", obj{"positions": positions, "enrich_returns": true})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAnalysisEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	positions := []map[string]interface{}{
		{"symbol": "NVDA", "quantity": 10, "price": 100, "risk_score": 0.9, "sector": "Tech"},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/analysis", obj{"positions": positions})
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.Analysis
	decode(t, w, &result)
	assert.Equal(t, 100.0, result.HighRiskPercentage)
	assert.Equal(t, map[string]float64{"Tech": 1}, result.SectorDistribution)
	assert.Len(t, result.Suggestions, 3)

	w = doJSON(t, s, http.MethodPost, "/api/v1/portfolio/analysis", obj{"positions": positions, "high_risk_threshold": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisEndpoint_EmptyPortfolio(t *testing.T) {
	s := newTestServer(t, engine.Options{})

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/analysis", obj{"positions": []interface{}{}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"high_risk_percentage":0,"sector_distribution":{},"diversification_score":0,"suggestions":[]}`,
		w.Body.String())
}

func TestSimulateEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/simulate", obj{
		"positions": testPositions,
		"change":    obj{"symbol": "TSLA"},
		"action":    "remove",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.Simulation
	decode(t, w, &result)
	assert.Equal(t, 0.0, result.RiskChange)
	assert.Equal(t, analysis.SummaryUnchanged, result.Summary)
}

func TestForecastEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})

	w := doJSON(t, s, http.MethodPost, "/api/v1/portfolio/forecast", obj{
		"history":          []interface{}{[]interface{}{"t1", 0.1}, obj{"label": "t2", "risk_score": 0.2}, []interface{}{"t3", 0.3}},
		"forecast_periods": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result forecast.Trend
	decode(t, w, &result)
	require.Len(t, result.Predictions, 2)
	assert.InDelta(t, 0.4, result.Predictions[0], 1e-9)
	require.NotNil(t, result.Warning)
	assert.Equal(t, forecast.RisingWarning, *result.Warning)

	w = doJSON(t, s, http.MethodPost, "/api/v1/portfolio/forecast", obj{"history": []interface{}{}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"predictions":[],"warning":null}`, w.Body.String())
}

func TestStoredForecastEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})
	w := doJSON(t, s, http.MethodGet, "/api/v1/portfolio/growth/forecast", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT recorded_at, risk_score").
		WithArgs("growth", engine.DefaultHistoryLimit).
		WillReturnRows(pgxmock.NewRows([]string{"recorded_at", "risk_score"}).
			AddRow(t1.Add(24*time.Hour), 0.4).
			AddRow(t1, 0.4))

	s = newTestServer(t, engine.Options{Store: history.NewStore(mock, nil)})

	w = doJSON(t, s, http.MethodGet, "/api/v1/portfolio/growth/forecast?periods=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result forecast.Trend
	decode(t, w, &result)
	require.Len(t, result.Predictions, 3)
	assert.InDelta(t, 0.4, result.Predictions[2], 1e-9)
	assert.Nil(t, result.Warning)
	assert.NoError(t, mock.ExpectationsWereMet())

	w = doJSON(t, s, http.MethodGet, "/api/v1/portfolio/growth/forecast?periods=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTailRiskEndpoint(t *testing.T) {
	s := newTestServer(t, engine.Options{})

	w := doJSON(t, s, http.MethodPost, "/api/v1/risk/var", obj{
		"returns":    []float64{0.04, -0.05, 0.01, -0.02, 0.03},
		"confidence": 0.8,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result risk.TailStatistics
	decode(t, w, &result)
	assert.InDelta(t, 0.026, result.VaR, 1e-9)
	assert.InDelta(t, 0.05, result.CVaR, 1e-9)
	assert.Equal(t, 5, result.SampleSize)

	w = doJSON(t, s, http.MethodPost, "/api/v1/risk/var", obj{"returns": []float64{0.1}, "confidence": 1.2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// obj is a shorthand for request bodies
type obj = map[string]interface{}
