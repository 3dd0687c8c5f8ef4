package risk

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/portfolio"
)

// CompositeWeights blends portfolio volatility and weighted beta into the
// composite score. The 50/50 default is a placeholder heuristic, not a
// statistically derived risk model.
type CompositeWeights struct {
	Volatility float64 `json:"volatility"`
	Beta       float64 `json:"beta"`
}

// DefaultCompositeWeights returns the equal weighting of volatility and beta
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{Volatility: 0.5, Beta: 0.5}
}

// AdvancedRisk is the correlation-aware portfolio estimate
type AdvancedRisk struct {
	PortfolioRisk float64 `json:"portfolio_risk"`
	WeightedBeta  float64 `json:"weighted_beta"`
	// PortfolioVolatility is absent for an empty or zero-value portfolio.
	PortfolioVolatility *float64 `json:"portfolio_volatility,omitempty"`
}

// AdvancedPortfolioRisk estimates portfolio risk with the default composite weights
func AdvancedPortfolioRisk(positions []portfolio.Position) AdvancedRisk {
	return AdvancedPortfolioRiskWith(positions, DefaultCompositeWeights())
}

// AdvancedPortfolioRiskWith estimates portfolio variance as the full
// quadratic form w_i*w_j*vol_i*vol_j*corr_ij and combines the resulting
// volatility with the value-weighted beta, capped at 1.0.
func AdvancedPortfolioRiskWith(positions []portfolio.Position, cw CompositeWeights) AdvancedRisk {
	if len(positions) == 0 {
		return AdvancedRisk{}
	}

	valuation := portfolio.Value(positions)
	if valuation.IsZero() {
		return AdvancedRisk{}
	}

	weights := valuation.Weights()
	corr := positionCorrelation(positions)

	n := len(positions)
	portVar := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			portVar += weights[i] *
				weights[j] *
				positions[i].Volatility *
				positions[j].Volatility *
				corr[i][j]
		}
	}
	// Rounding can push a PSD quadratic form a hair below zero.
	if portVar < 0 {
		portVar = 0
	}

	weightedBeta := 0.0
	for i, pos := range positions {
		weightedBeta += weights[i] * pos.Beta
	}

	volatility := math.Sqrt(portVar)
	score := math.Min(1.0, volatility*cw.Volatility+weightedBeta*cw.Beta)

	log.Debug().
		Int("positions", n).
		Float64("portfolio_variance", portVar).
		Float64("portfolio_volatility", volatility).
		Float64("weighted_beta", weightedBeta).
		Float64("portfolio_risk", score).
		Msg("Advanced portfolio risk calculated")

	return AdvancedRisk{
		PortfolioRisk:       score,
		WeightedBeta:        weightedBeta,
		PortfolioVolatility: &volatility,
	}
}

// positionCorrelation uses the empirical correlation only when every
// position supplies returns; otherwise positions are assumed uncorrelated.
func positionCorrelation(positions []portfolio.Position) [][]float64 {
	series := make([][]float64, 0, len(positions))
	for _, pos := range positions {
		if !pos.HasReturns() {
			return IdentityMatrix(len(positions))
		}
		series = append(series, pos.Returns)
	}

	corr, err := CorrelationMatrix(AlignReturns(series))
	if err != nil {
		log.Debug().Err(err).Msg("Empirical correlation unavailable, assuming uncorrelated positions")
		return IdentityMatrix(len(positions))
	}
	return corr
}
