package risk

import (
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/portfolio"
)

// PositionRisk is one position's share of the weighted portfolio risk
type PositionRisk struct {
	Symbol       string  `json:"symbol"`
	Weight       float64 `json:"weight"`
	WeightedRisk float64 `json:"weighted_risk"`
}

// WeightedRisk is the value-weighted combination of per-position risk scores
type WeightedRisk struct {
	PortfolioRisk float64        `json:"portfolio_risk"`
	Details       []PositionRisk `json:"details"`
}

// WeightedPortfolioRisk combines risk scores using market-value weights.
// Details preserve input order. A zero-value snapshot (including an empty
// one) yields a zero risk and no details.
func WeightedPortfolioRisk(positions []portfolio.Position) WeightedRisk {
	valuation := portfolio.Value(positions)
	if valuation.IsZero() {
		return WeightedRisk{PortfolioRisk: 0.0, Details: []PositionRisk{}}
	}

	details := make([]PositionRisk, 0, len(positions))
	portfolioRisk := 0.0

	for i, pos := range positions {
		weight := valuation.Values[i] / valuation.Total
		weightedRisk := pos.RiskScore * weight
		portfolioRisk += weightedRisk
		details = append(details, PositionRisk{
			Symbol:       pos.Symbol,
			Weight:       weight,
			WeightedRisk: weightedRisk,
		})
	}

	log.Debug().
		Int("positions", len(positions)).
		Float64("total_value", valuation.Total).
		Float64("portfolio_risk", portfolioRisk).
		Msg("Weighted portfolio risk calculated")

	return WeightedRisk{PortfolioRisk: portfolioRisk, Details: details}
}
