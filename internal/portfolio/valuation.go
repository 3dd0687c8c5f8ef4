package portfolio

// Valuation is the per-position market value of a snapshot and its total.
type Valuation struct {
	Values []float64
	Total  float64
}

// Value computes the market value of every position, preserving input order.
func Value(positions []Position) Valuation {
	values := make([]float64, len(positions))
	total := 0.0
	for i, p := range positions {
		values[i] = p.Value()
		total += values[i]
	}
	return Valuation{Values: values, Total: total}
}

// IsZero reports whether the snapshot has no value to divide by. Every
// ratio-based computation short-circuits on it.
func (v Valuation) IsZero() bool {
	return v.Total == 0
}

// Weights returns value/total for each position, or nil for a zero-value
// snapshot.
func (v Valuation) Weights() []float64 {
	if v.IsZero() {
		return nil
	}
	weights := make([]float64, len(v.Values))
	for i, value := range v.Values {
		weights[i] = value / v.Total
	}
	return weights
}
