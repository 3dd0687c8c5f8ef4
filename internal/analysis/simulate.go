package analysis

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/portfolio"
	"github.com/finover/riskengine/internal/risk"
)

// Action is the hypothetical change applied by a simulation
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Simulation summaries
const (
	SummaryIncreased = "Portfolio risk has increased."
	SummaryDecreased = "Portfolio risk has decreased."
	SummaryUnchanged = "Portfolio risk is unchanged."
)

// Simulation compares weighted risk before and after a change
type Simulation struct {
	NewRisk    float64  `json:"new_risk"`
	OldRisk    float64  `json:"old_risk"`
	RiskChange float64  `json:"risk_change"`
	Analysis   Analysis `json:"analysis"`
	Summary    string   `json:"summary"`
}

// ApplyChange returns a new position list with the change applied. add
// appends change; remove drops every position with change's symbol; any
// other action returns an unchanged copy. positions is never modified.
func ApplyChange(positions []portfolio.Position, change portfolio.Position, action Action) []portfolio.Position {
	switch action {
	case ActionAdd:
		return append(slices.Clone(positions), change)
	case ActionRemove:
		kept := make([]portfolio.Position, 0, len(positions))
		for _, pos := range positions {
			if pos.Symbol != change.Symbol {
				kept = append(kept, pos)
			}
		}
		return kept
	default:
		log.Debug().Str("action", string(action)).Msg("Unrecognized simulation action, portfolio unchanged")
		return slices.Clone(positions)
	}
}

// SimulatePortfolioChange re-runs the weighted aggregation and the
// concentration analysis on the changed portfolio and reports the delta.
func SimulatePortfolioChange(positions []portfolio.Position, change portfolio.Position, action Action, highRiskThreshold float64) Simulation {
	newPositions := ApplyChange(positions, change, action)

	current := risk.WeightedPortfolioRisk(positions)
	updated := risk.WeightedPortfolioRisk(newPositions)

	var summary string
	switch {
	case updated.PortfolioRisk > current.PortfolioRisk:
		summary = SummaryIncreased
	case updated.PortfolioRisk < current.PortfolioRisk:
		summary = SummaryDecreased
	default:
		summary = SummaryUnchanged
	}

	return Simulation{
		NewRisk:    updated.PortfolioRisk,
		OldRisk:    current.PortfolioRisk,
		RiskChange: updated.PortfolioRisk - current.PortfolioRisk,
		Analysis:   AnalyzePortfolio(newPositions, highRiskThreshold),
		Summary:    summary,
	}
}
