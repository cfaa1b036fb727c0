// Package router selects the model tier for a call based on declared task
// complexity and remaining budget.
package router

import (
	"errors"
	"sort"

	"github.com/avaluev/conductor/pkg/models"
)

// ErrBudgetExhausted signals that the remaining budget cannot cover even the
// cheapest tier's estimated call cost. It is control flow, not a failure.
var ErrBudgetExhausted = errors.New("remaining budget cannot cover the cheapest tier")

// Nominal per-call token counts used only for the router's affordability
// check. The budget guard re-estimates with the real prompt before the call.
const (
	nominalInputTokens  = 2000
	nominalOutputTokens = 1000
)

// Router picks the cheapest tier whose capability rank covers a task's
// declared complexity. Routing is deterministic given the same inputs.
type Router struct {
	tiers []models.ModelTier
}

// New creates a Router over the given tier table. The table is copied and
// sorted cheapest-first by nominal call cost, so "cheapest covering tier"
// holds even for tables where price and capability rank do not rise
// together. Rank breaks price ties.
func New(tiers []models.ModelTier) *Router {
	ordered := make([]models.ModelTier, len(tiers))
	copy(ordered, tiers)
	sort.Slice(ordered, func(i, j int) bool {
		ci := ordered[i].Cost(nominalInputTokens, nominalOutputTokens)
		cj := ordered[j].Cost(nominalInputTokens, nominalOutputTokens)
		if ci != cj {
			return ci < cj
		}
		return ordered[i].CapabilityRank < ordered[j].CapabilityRank
	})
	return &Router{tiers: ordered}
}

// Select returns the cheapest tier whose capability rank meets or exceeds
// the complexity's required rank. When remainingUSD cannot cover the
// cheapest tier's nominal call cost, it returns ErrBudgetExhausted.
func (r *Router) Select(complexity models.Complexity, remainingUSD float64) (models.ModelTier, error) {
	if len(r.tiers) == 0 {
		return models.ModelTier{}, errors.New("router has no tiers configured")
	}

	cheapest := r.tiers[0]
	if cheapest.Cost(nominalInputTokens, nominalOutputTokens) > remainingUSD {
		return models.ModelTier{}, ErrBudgetExhausted
	}

	need := complexity.Rank()
	for _, t := range r.tiers {
		if t.CapabilityRank >= need {
			return t, nil
		}
	}

	// No tier covers the requested rank; fall back to the most capable.
	best := r.tiers[0]
	for _, t := range r.tiers[1:] {
		if t.CapabilityRank > best.CapabilityRank {
			best = t
		}
	}
	return best, nil
}

// Tiers returns the ordered tier table.
func (r *Router) Tiers() []models.ModelTier {
	out := make([]models.ModelTier, len(r.tiers))
	copy(out, r.tiers)
	return out
}
