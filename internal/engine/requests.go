package engine

import (
	"github.com/finover/riskengine/internal/forecast"
)

// PortfolioRequest carries a raw position list. Positions are decoded with
// the configured defaults table, so fields may be absent or null.
type PortfolioRequest struct {
	Positions   []map[string]interface{} `json:"positions" yaml:"positions"`
	PortfolioID string                   `json:"portfolio_id,omitempty" yaml:"portfolio_id,omitempty"`

	// EnrichReturns asks for return series of positions without one to be
	// loaded from price history before the advanced estimate.
	EnrichReturns bool `json:"enrich_returns,omitempty" yaml:"enrich_returns,omitempty"`

	// HighRiskThreshold overrides the configured threshold of the analyzer.
	HighRiskThreshold *float64 `json:"high_risk_threshold,omitempty" yaml:"high_risk_threshold,omitempty"`
}

// SimulationRequest describes a hypothetical add or remove
type SimulationRequest struct {
	Positions         []map[string]interface{} `json:"positions" yaml:"positions"`
	Change            map[string]interface{}   `json:"change" yaml:"change"`
	Action            string                   `json:"action,omitempty" yaml:"action,omitempty"` // defaults to add
	PortfolioID       string                   `json:"portfolio_id,omitempty" yaml:"portfolio_id,omitempty"`
	HighRiskThreshold *float64                 `json:"high_risk_threshold,omitempty" yaml:"high_risk_threshold,omitempty"`
}

// ForecastRequest carries an ordered risk history
type ForecastRequest struct {
	History         []forecast.Point `json:"history" yaml:"history"`
	ForecastPeriods *int             `json:"forecast_periods,omitempty" yaml:"forecast_periods,omitempty"`
	PortfolioID     string           `json:"portfolio_id,omitempty" yaml:"portfolio_id,omitempty"`
}

// TailRiskRequest carries a return sample for VaR and CVaR
type TailRiskRequest struct {
	Returns    []float64 `json:"returns" yaml:"returns"`
	Confidence *float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}
