// Package analysis scores sector concentration and diversification of a
// portfolio snapshot, produces plain-language suggestions, and simulates
// adding or removing a holding.
package analysis

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/portfolio"
	"github.com/finover/riskengine/internal/risk"
)

// DefaultHighRiskThreshold is the risk score at or above which a position counts as high risk
const DefaultHighRiskThreshold = 0.6

// Limits above (or below, for diversification) which a suggestion is made
const (
	HighRiskPercentageLimit  = 50.0
	SectorConcentrationLimit = 0.5
	DiversificationFloor     = 0.5
	CorrelationLimit         = 0.8
)

// Suggestion texts
const (
	SuggestionHighRisk = "Your portfolio contains a high proportion of risky stocks." +
		" Consider diversifying with safer assets."
	SuggestionLowDiversification = "Your portfolio diversification score is low. Consider spreading your" +
		" investments across more sectors."
	SuggestionHighCorrelation = "Some portfolio holdings are highly correlated. Diversifying into" +
		" less correlated assets could reduce risk."

	sectorConcentrationFormat = "Your portfolio is heavily concentrated in the %s sector." +
		" Consider adding stocks from different sectors for better diversification."
)

// ErrTooFewSeries is returned by the correlation check when fewer than two
// positions carry returns
var ErrTooFewSeries = errors.New("correlation check needs at least two return series")

// Analysis is the concentration and diversification report for one snapshot
type Analysis struct {
	HighRiskPercentage   float64            `json:"high_risk_percentage"`
	SectorDistribution   map[string]float64 `json:"sector_distribution"`
	DiversificationScore float64            `json:"diversification_score"`
	Suggestions          []string           `json:"suggestions"`
}

// SectorConcentrationSuggestion is the warning issued for a dominant sector
func SectorConcentrationSuggestion(sector string) string {
	return fmt.Sprintf(sectorConcentrationFormat, sector)
}

func emptyAnalysis() Analysis {
	return Analysis{
		HighRiskPercentage:   0.0,
		SectorDistribution:   map[string]float64{},
		DiversificationScore: 0.0,
		Suggestions:          []string{},
	}
}

// AnalyzePortfolio computes the high-risk share, the sector distribution,
// the HHI-based diversification score and the matching suggestions.
func AnalyzePortfolio(positions []portfolio.Position, highRiskThreshold float64) Analysis {
	if len(positions) == 0 {
		return emptyAnalysis()
	}

	valuation := portfolio.Value(positions)
	if valuation.IsZero() {
		return emptyAnalysis()
	}

	highRiskValue := 0.0
	sectorValues := make(map[string]float64)
	// First-seen order keeps sums and tie-breaks independent of map iteration.
	var sectors []string

	for i, pos := range positions {
		value := valuation.Values[i]
		if pos.RiskScore >= highRiskThreshold {
			highRiskValue += value
		}
		if _, seen := sectorValues[pos.Sector]; !seen {
			sectors = append(sectors, pos.Sector)
		}
		sectorValues[pos.Sector] += value
	}

	highRiskPercentage := 100 * highRiskValue / valuation.Total

	distribution := make(map[string]float64, len(sectors))
	hhi := 0.0
	maxSector, maxWeight := "", 0.0
	for _, sector := range sectors {
		weight := sectorValues[sector] / valuation.Total
		distribution[sector] = weight
		hhi += weight * weight
		if weight > maxWeight {
			maxSector, maxWeight = sector, weight
		}
	}
	diversificationScore := 1 - hhi

	suggestions := []string{}
	if highRiskPercentage > HighRiskPercentageLimit {
		suggestions = append(suggestions, SuggestionHighRisk)
	}
	if maxWeight > SectorConcentrationLimit {
		suggestions = append(suggestions, SectorConcentrationSuggestion(maxSector))
	}
	if diversificationScore < DiversificationFloor {
		suggestions = append(suggestions, SuggestionLowDiversification)
	}

	if countWithReturns(positions) > 1 {
		maxCorr, err := MaxHoldingCorrelation(positions)
		switch {
		case err != nil:
			log.Warn().
				Err(err).
				Int("positions", len(positions)).
				Msg("Correlation check skipped")
		case maxCorr > CorrelationLimit:
			suggestions = append(suggestions, SuggestionHighCorrelation)
		}
	}

	log.Debug().
		Float64("high_risk_percentage", highRiskPercentage).
		Int("sectors", len(sectors)).
		Float64("diversification_score", diversificationScore).
		Int("suggestions", len(suggestions)).
		Msg("Portfolio analyzed")

	return Analysis{
		HighRiskPercentage:   highRiskPercentage,
		SectorDistribution:   distribution,
		DiversificationScore: diversificationScore,
		Suggestions:          suggestions,
	}
}

// MaxHoldingCorrelation aligns the return series of the positions that have
// one and returns the largest pairwise correlation between them.
func MaxHoldingCorrelation(positions []portfolio.Position) (float64, error) {
	var series [][]float64
	for _, pos := range positions {
		if pos.HasReturns() {
			series = append(series, pos.Returns)
		}
	}
	if len(series) < 2 {
		return 0, ErrTooFewSeries
	}

	corr, err := risk.CorrelationMatrix(risk.AlignReturns(series))
	if err != nil {
		return 0, fmt.Errorf("failed to correlate holdings: %w", err)
	}

	maxCorr, _ := risk.MaxOffDiagonal(corr)
	return maxCorr, nil
}

func countWithReturns(positions []portfolio.Position) int {
	n := 0
	for _, pos := range positions {
		if pos.HasReturns() {
			n++
		}
	}
	return n
}
