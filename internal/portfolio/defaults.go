package portfolio

import (
	"encoding/json"
	"fmt"
)

// FieldDefaults is the table applied to fields absent from raw input.
type FieldDefaults struct {
	Quantity   float64
	Price      float64
	RiskScore  float64
	Sector     string
	Volatility float64
	Beta       float64
}

// DefaultFieldDefaults returns the standard table: zero quantity, price,
// risk score and volatility, sector "Unknown" and a market beta of 1.0.
func DefaultFieldDefaults() FieldDefaults {
	return FieldDefaults{
		Sector: UnknownSector,
		Beta:   1.0,
	}
}

// FromMap converts one decoded JSON/YAML object into a Position. Absent or
// null fields take the value from d; present fields of the wrong type yield
// a *FieldError. index is only used for error reporting.
func FromMap(index int, raw map[string]interface{}, d FieldDefaults) (Position, error) {
	p := Position{
		Quantity:   d.Quantity,
		Price:      d.Price,
		RiskScore:  d.RiskScore,
		Sector:     d.Sector,
		Volatility: d.Volatility,
		Beta:       d.Beta,
	}

	var err error
	if p.Symbol, err = stringField(index, raw, "symbol", ""); err != nil {
		return Position{}, err
	}
	if p.Sector, err = stringField(index, raw, "sector", d.Sector); err != nil {
		return Position{}, err
	}

	numbers := []struct {
		name string
		dst  *float64
	}{
		{"quantity", &p.Quantity},
		{"price", &p.Price},
		{"risk_score", &p.RiskScore},
		{"volatility", &p.Volatility},
		{"beta", &p.Beta},
	}
	for _, n := range numbers {
		v, ok := raw[n.name]
		if !ok || v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return Position{}, &FieldError{Index: index, Field: n.name, Expected: "a number", Value: v}
		}
		*n.dst = f
	}

	if v, ok := raw["returns"]; ok && v != nil {
		p.Returns, err = floatSlice(index, v)
		if err != nil {
			return Position{}, err
		}
	}

	return p, nil
}

// Decode converts a list of raw objects, stopping at the first malformed one.
func Decode(raws []map[string]interface{}, d FieldDefaults) ([]Position, error) {
	positions := make([]Position, 0, len(raws))
	for i, raw := range raws {
		p, err := FromMap(i, raw, d)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func stringField(index int, raw map[string]interface{}, name, fallback string) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Index: index, Field: name, Expected: "a string", Value: v}
	}
	return s, nil
}

func floatSlice(index int, v interface{}) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		out := make([]float64, len(vals))
		copy(out, vals)
		return out, nil
	case []interface{}:
		out := make([]float64, len(vals))
		for i, item := range vals {
			f, ok := toFloat(item)
			if !ok {
				return nil, &FieldError{
					Index:    index,
					Field:    fmt.Sprintf("returns[%d]", i),
					Expected: "a number",
					Value:    item,
				}
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, &FieldError{Index: index, Field: "returns", Expected: "an array of numbers", Value: v}
	}
}

// toFloat accepts the numeric types produced by encoding/json, yaml.v3 and
// Go callers. Strings and booleans are rejected rather than coerced.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
