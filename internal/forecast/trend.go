// Package forecast projects a portfolio's risk-score history forward with
// a least-squares linear trend.
package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPeriods is the number of future periods projected when none is given
	DefaultPeriods = 5

	// RiseThreshold is how far the last projection must exceed the last
	// observation before a warning is raised
	RiseThreshold = 0.1

	RisingWarning = "Your portfolio risk is expected to rise over the next few periods." +
		" Consider reducing high-risk holdings."
)

// Point is one chronological risk observation. It decodes from either
// {"label": "t1", "risk_score": 0.1} or the pair form ["t1", 0.1].
type Point struct {
	Label     string  `json:"label" yaml:"label"`
	RiskScore float64 `json:"risk_score" yaml:"risk_score"`
}

// UnmarshalJSON accepts both the object and the pair encoding
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("history point must be a [label, risk_score] pair, got %d elements", len(pair))
		}
		if err := json.Unmarshal(pair[0], &p.Label); err != nil {
			return fmt.Errorf("history point label: %w", err)
		}
		if err := json.Unmarshal(pair[1], &p.RiskScore); err != nil {
			return fmt.Errorf("history point risk_score: %w", err)
		}
		return nil
	}

	type plain Point
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Point(decoded)
	return nil
}

// UnmarshalYAML accepts the same two forms as UnmarshalJSON
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		if len(value.Content) != 2 {
			return fmt.Errorf("history point must be a [label, risk_score] pair, got %d elements", len(value.Content))
		}
		if err := value.Content[0].Decode(&p.Label); err != nil {
			return fmt.Errorf("history point label: %w", err)
		}
		if err := value.Content[1].Decode(&p.RiskScore); err != nil {
			return fmt.Errorf("history point risk_score: %w", err)
		}
		return nil
	}

	type plain Point
	var decoded plain
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	*p = Point(decoded)
	return nil
}

// Trend holds the projected risk values and an optional advisory. Predictions
// are not clamped to [0,1].
type Trend struct {
	Predictions []float64 `json:"predictions"`
	Warning     *string   `json:"warning"`
}

// HasWarning reports whether a rising-risk warning was raised
func (t Trend) HasWarning() bool {
	return t.Warning != nil
}

// PredictRiskTrend fits risk_score against the 0-based index of each point
// and projects periods further indices. Fewer than two points, or a
// non-positive period count, yield no predictions and no warning.
func PredictRiskTrend(history []Point, periods int) Trend {
	result := Trend{Predictions: []float64{}}
	if len(history) < 2 || periods <= 0 {
		return result
	}

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, point := range history {
		xs[i] = float64(i)
		ys[i] = point.RiskScore
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	predictions := make([]float64, periods)
	for i := range predictions {
		predictions[i] = intercept + slope*float64(len(history)+i)
	}
	result.Predictions = predictions

	last := ys[len(ys)-1]
	if predictions[len(predictions)-1]-last > RiseThreshold {
		warning := RisingWarning
		result.Warning = &warning
	}

	log.Debug().
		Int("history", len(history)).
		Int("periods", periods).
		Float64("slope", slope).
		Bool("warning", result.HasWarning()).
		Msg("Risk trend projected")

	return result
}
