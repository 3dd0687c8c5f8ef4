package risk

import (
	"math"
	"slices"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// DefaultConfidence is the confidence level used when callers give none
const DefaultConfidence = 0.95

// TailStatistics bundles VaR and CVaR for one return sample
type TailStatistics struct {
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
	Confidence float64 `json:"confidence"`
	SampleSize int     `json:"sample_size"`
}

// ============================================================================
// VALUE AT RISK (VAR) CALCULATION
// ============================================================================

// ValueAtRisk returns the magnitude of the (1-confidence) lower-tail
// percentile of the return distribution, or 0 for an empty sample.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	return math.Abs(Percentile(returns, (1-confidence)*100))
}

// ConditionalValueAtRisk (expected shortfall) averages every return at or
// below the VaR threshold and returns the magnitude of that average.
func ConditionalValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	threshold := Percentile(returns, (1-confidence)*100)
	tail := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return 0.0
	}
	return math.Abs(stat.Mean(tail, nil))
}

// CalculateTailStatistics computes VaR and CVaR together
func CalculateTailStatistics(returns []float64, confidence float64) TailStatistics {
	result := TailStatistics{
		VaR:        ValueAtRisk(returns, confidence),
		CVaR:       ConditionalValueAtRisk(returns, confidence),
		Confidence: confidence,
		SampleSize: len(returns),
	}

	log.Debug().
		Int("returns_count", len(returns)).
		Float64("confidence_level", confidence).
		Float64("var", result.VaR).
		Float64("cvar", result.CVaR).
		Msg("VaR calculated from historical returns")

	return result
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between the closest order statistics. p is clamped to [0, 100]; a NaN p
// yields NaN.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if math.IsNaN(p) {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	slices.Sort(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)

	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
