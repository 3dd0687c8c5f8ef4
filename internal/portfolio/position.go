// Package portfolio holds the position entity consumed by the risk engine,
// the boundary that turns loosely typed input into positions, and the
// valuation every analysis starts from.
package portfolio

// UnknownSector is the sector assigned to positions that do not name one.
const UnknownSector = "Unknown"

// Position is a single holding. All fields are already defaulted; the risk
// code never has to guess a missing value.
type Position struct {
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Quantity   float64   `json:"quantity" yaml:"quantity"`
	Price      float64   `json:"price" yaml:"price"`
	RiskScore  float64   `json:"risk_score" yaml:"risk_score"`
	Sector     string    `json:"sector" yaml:"sector"`
	Volatility float64   `json:"volatility" yaml:"volatility"`
	Beta       float64   `json:"beta" yaml:"beta"`
	Returns    []float64 `json:"returns,omitempty" yaml:"returns,omitempty"`
}

// New builds a position with the standard defaults for the optional fields.
func New(symbol string, quantity, price, riskScore float64) Position {
	d := DefaultFieldDefaults()
	return Position{
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		RiskScore:  riskScore,
		Sector:     d.Sector,
		Volatility: d.Volatility,
		Beta:       d.Beta,
	}
}

// Value is the market value of the holding.
func (p Position) Value() float64 {
	return p.Quantity * p.Price
}

// HasReturns reports whether the position carries a non-empty return series.
func (p Position) HasReturns() bool {
	return len(p.Returns) > 0
}
