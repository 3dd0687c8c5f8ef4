package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/finover/riskengine/internal/analysis"
	"github.com/finover/riskengine/internal/forecast"
)

// AlertType is the kind of risk alert and the last token of its subject
type AlertType string

const (
	AlertTypeSuggestion   AlertType = "suggestion"
	AlertTypeTrendWarning AlertType = "trend_warning"
	AlertTypeRiskIncrease AlertType = "risk_increase"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Alert is a risk finding published for downstream consumers
type Alert struct {
	ID          uuid.UUID          `json:"id"`
	Type        AlertType          `json:"type"`
	Severity    Severity           `json:"severity"`
	Source      string             `json:"source"` // operation that produced the alert
	PortfolioID string             `json:"portfolio_id,omitempty"`
	Message     string             `json:"message"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewAlert creates an alert with a fresh ID and timestamp
func NewAlert(alertType AlertType, severity Severity, source, message string) *Alert {
	return &Alert{
		ID:        uuid.New(),
		Type:      alertType,
		Severity:  severity,
		Source:    source,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// WithPortfolio sets the portfolio the alert refers to
func (a *Alert) WithPortfolio(portfolioID string) *Alert {
	a.PortfolioID = portfolioID
	return a
}

// WithMetric attaches a figure to the alert
func (a *Alert) WithMetric(name string, value float64) *Alert {
	if a.Metrics == nil {
		a.Metrics = make(map[string]float64)
	}
	a.Metrics[name] = value
	return a
}

// AnalysisAlerts turns every suggestion of an analysis into a warning alert
func AnalysisAlerts(source string, result analysis.Analysis) []*Alert {
	alerts := make([]*Alert, 0, len(result.Suggestions))
	for _, suggestion := range result.Suggestions {
		alerts = append(alerts, NewAlert(AlertTypeSuggestion, SeverityWarning, source, suggestion).
			WithMetric("high_risk_percentage", result.HighRiskPercentage).
			WithMetric("diversification_score", result.DiversificationScore))
	}
	return alerts
}

// TrendAlert returns the alert for a rising trend, or nil when the trend carries no warning
func TrendAlert(source string, trend forecast.Trend) *Alert {
	if !trend.HasWarning() {
		return nil
	}
	alert := NewAlert(AlertTypeTrendWarning, SeverityWarning, source, *trend.Warning)
	if n := len(trend.Predictions); n > 0 {
		alert.WithMetric("final_prediction", trend.Predictions[n-1])
	}
	return alert
}

// SimulationAlert returns an informational alert when a simulated change raises risk, or nil
func SimulationAlert(source string, sim analysis.Simulation) *Alert {
	if sim.RiskChange <= 0 {
		return nil
	}
	return NewAlert(AlertTypeRiskIncrease, SeverityInfo, source, sim.Summary).
		WithMetric("old_risk", sim.OldRisk).
		WithMetric("new_risk", sim.NewRisk).
		WithMetric("risk_change", sim.RiskChange)
}
