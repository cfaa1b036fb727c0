package budget

import (
	"fmt"
	"sort"
	"time"

	"github.com/avaluev/conductor/pkg/models"
)

// AgentUsage is one agent's slice of today's spend.
type AgentUsage struct {
	AgentID          string             `json:"agent_id"`
	Totals           models.UsageTotals `json:"totals"`
	AvgTokensPerCall float64            `json:"avg_tokens_per_call"`
	CeilingUSD       float64            `json:"ceiling_usd,omitempty"`
	RemainingUSD     float64            `json:"remaining_usd,omitempty"`
}

// Suggestion is one cost-optimization recommendation derived from usage.
type Suggestion struct {
	AgentID        string `json:"agent_id"`
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// Summary is the budget state derived from today's usage records.
type Summary struct {
	Date          string             `json:"date"`
	SpentUSD      float64            `json:"spent_usd"`
	CeilingUSD    float64            `json:"ceiling_usd"`
	RemainingUSD  float64            `json:"remaining_usd"`
	SavingsUSD    float64            `json:"savings_usd"`
	UsedFraction  float64            `json:"used_fraction"`
	WarningActive bool               `json:"warning_active"`
	Global        models.UsageTotals `json:"global"`
	Agents        []AgentUsage       `json:"agents"`
	Suggestions   []Suggestion       `json:"suggestions"`
}

// Suggestion thresholds.
const (
	highTokensPerCall = 5000
	highSpendFraction = 0.50
)

// Summarize derives the BudgetState for the global scope, or for a single
// agent when agentID is non-empty. It is recomputed on demand from the
// ledger; nothing is cached.
func (g *Guard) Summarize(agentID string) Summary {
	totals := g.ledger.TotalsToday()
	global := totals[""]

	s := Summary{
		Date:         dayStart(time.Now()).Format("2006-01-02"),
		SpentUSD:     global.Cost,
		CeilingUSD:   g.ceiling,
		RemainingUSD: g.ceiling - global.Cost,
		SavingsUSD:   global.Savings,
		Global:       global,
	}
	if g.ceiling > 0 {
		s.UsedFraction = global.Cost / g.ceiling
		s.WarningActive = s.UsedFraction >= g.warnThreshold
	}

	for id, t := range totals {
		if id == "" {
			continue
		}
		if agentID != "" && id != agentID {
			continue
		}
		usage := AgentUsage{AgentID: id, Totals: t}
		if t.Calls > 0 {
			usage.AvgTokensPerCall = float64(t.TotalTokens()) / float64(t.Calls)
		}
		if ceiling, ok := g.agentCeilings[id]; ok {
			usage.CeilingUSD = ceiling
			usage.RemainingUSD = ceiling - t.Cost
		}
		s.Agents = append(s.Agents, usage)
	}
	sort.Slice(s.Agents, func(i, j int) bool { return s.Agents[i].AgentID < s.Agents[j].AgentID })

	s.Suggestions = g.suggestions(s)
	return s
}

// suggestions derives optimization recommendations from a summary.
func (g *Guard) suggestions(s Summary) []Suggestion {
	var out []Suggestion

	for _, a := range s.Agents {
		if a.AvgTokensPerCall > highTokensPerCall {
			out = append(out, Suggestion{
				AgentID: a.AgentID,
				Issue:   "high_tokens_per_call",
				Recommendation: fmt.Sprintf(
					"average call uses %.0f tokens; consider summarizing context or splitting tasks",
					a.AvgTokensPerCall),
			})
		}
	}

	if g.ceiling > 0 && s.UsedFraction > highSpendFraction {
		out = append(out, Suggestion{
			AgentID:        "system",
			Issue:          "high_daily_spend",
			Recommendation: "review agent prompts for efficiency and enable prompt caching",
		})
	}
	return out
}
