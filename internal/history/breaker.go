package history

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Metric result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Database circuit breaker defaults (fast recovery)
const (
	DBMinRequests     = 10
	DBFailureRatio    = 0.6
	DBOpenTimeout     = 15 * time.Second
	DBHalfOpenMaxReqs = 5
	DBCountInterval   = 10 * time.Second
)

// BreakerSettings holds circuit breaker thresholds
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultBreakerSettings returns the database breaker defaults
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     DBMinRequests,
		FailureRatio:    DBFailureRatio,
		OpenTimeout:     DBOpenTimeout,
		HalfOpenMaxReqs: DBHalfOpenMaxReqs,
		CountInterval:   DBCountInterval,
	}
}

type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

var (
	globalBreakerMetrics *breakerMetrics
	breakerMetricsOnce   sync.Once
)

func initBreakerMetrics() *breakerMetrics {
	breakerMetricsOnce.Do(func() {
		globalBreakerMetrics = &breakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "riskengine_circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "riskengine_circuit_breaker_requests_total",
					Help: "Total number of requests through circuit breaker",
				},
				[]string{"service", "result"},
			),
		}
	})
	return globalBreakerMetrics
}

// NewBreaker creates a circuit breaker that trips once at least MinRequests
// were seen in the count interval and the failure ratio reached FailureRatio.
func NewBreaker(name string, settings BreakerSettings) *gobreaker.CircuitBreaker {
	metrics := initBreakerMetrics()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.state.WithLabelValues(name).Set(stateValue(to))
		},
	})
	metrics.state.WithLabelValues(name).Set(stateValue(cb.State()))

	return cb
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func recordRequest(service string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	initBreakerMetrics().requests.WithLabelValues(service, result).Inc()
}
