package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
const (
	// Analytics operations
	OperationWeightedRisk = "weighted_risk"
	OperationAdvancedRisk = "advanced_risk"
	OperationTailRisk     = "tail_risk"
	OperationAnalysis     = "analysis"
	OperationSimulation   = "simulation"
	OperationForecast     = "forecast"
	OperationOther        = "other"

	// Suggestion kinds
	SuggestionHighRisk            = "high_risk"
	SuggestionSectorConcentration = "sector_concentration"
	SuggestionLowDiversification  = "low_diversification"
	SuggestionHighCorrelation     = "high_correlation"
	SuggestionOther               = "other"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

var knownOperations = map[string]bool{
	OperationWeightedRisk: true,
	OperationAdvancedRisk: true,
	OperationTailRisk:     true,
	OperationAnalysis:     true,
	OperationSimulation:   true,
	OperationForecast:     true,
}

// NormalizeOperation maps an operation name onto the bounded set
func NormalizeOperation(operation string) string {
	if knownOperations[operation] {
		return operation
	}
	return OperationOther
}

// NormalizeSuggestion maps a suggestion text to its kind
func NormalizeSuggestion(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "risky"):
		return SuggestionHighRisk
	case strings.Contains(lower, "concentrated"):
		return SuggestionSectorConcentration
	case strings.Contains(lower, "diversification score"):
		return SuggestionLowDiversification
	case strings.Contains(lower, "correlated"):
		return SuggestionHighCorrelation
	default:
		return SuggestionOther
	}
}

// Analytics metrics
var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_operations_total",
		Help: "Total number of analytics operations by result",
	}, []string{"operation", "result"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_operation_duration_ms",
		Help:    "Analytics operation duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
	}, []string{"operation"})

	PortfolioRisk = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_portfolio_risk",
		Help:    "Distribution of computed portfolio risk scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"operation"})

	PortfolioPositions = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskengine_portfolio_positions",
		Help:    "Number of positions per analyzed portfolio",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	SuggestionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_suggestions_total",
		Help: "Total number of suggestions issued by kind",
	}, []string{"kind"})

	TrendWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskengine_trend_warnings_total",
		Help: "Total number of rising-risk trend warnings",
	})
)

// Infrastructure metrics
var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_cache_lookups_total",
		Help: "Total number of result cache lookups by result",
	}, []string{"operation", "result"})

	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_alerts_published_total",
		Help: "Total number of risk alerts published by type",
	}, []string{"type"})

	HistoryQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_history_query_duration_ms",
		Help:    "History store query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "path", "status_code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskengine_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})

	MCPToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskengine_mcp_tool_call_duration_ms",
		Help:    "MCP tool call duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100},
	}, []string{"tool_name"})
)

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordOperation records the outcome and duration of an analytics operation
func RecordOperation(operation string, duration time.Duration, err error) {
	operation = NormalizeOperation(operation)
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	Operations.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(millis(duration))
}

// RecordPortfolioRisk records a computed portfolio risk and the portfolio size
func RecordPortfolioRisk(operation string, risk float64, positions int) {
	PortfolioRisk.WithLabelValues(NormalizeOperation(operation)).Observe(risk)
	PortfolioPositions.Observe(float64(positions))
}

// RecordSuggestions counts issued suggestions by kind
func RecordSuggestions(suggestions []string) {
	for _, s := range suggestions {
		SuggestionsIssued.WithLabelValues(NormalizeSuggestion(s)).Inc()
	}
}

// RecordTrendWarning counts a rising-risk warning
func RecordTrendWarning() {
	TrendWarnings.Inc()
}

// RecordCacheLookup records a result cache hit or miss
func RecordCacheLookup(operation string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	CacheLookups.WithLabelValues(NormalizeOperation(operation), result).Inc()
}

// RecordAlert counts a published alert
func RecordAlert(alertType string) {
	AlertsPublished.WithLabelValues(alertType).Inc()
}

// RecordHistoryQuery records the duration of a history store query
func RecordHistoryQuery(query string, duration time.Duration) {
	HistoryQueryDuration.WithLabelValues(query).Observe(millis(duration))
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordMCPToolCall records MCP tool call duration
func RecordMCPToolCall(toolName string, duration time.Duration) {
	MCPToolCallDuration.WithLabelValues(toolName).Observe(millis(duration))
}
