package budget

import (
	"fmt"
	"sync"

	"github.com/avaluev/conductor/pkg/models"
)

// DefaultWarningThreshold is the fraction of the ceiling at which the
// non-blocking warning fires.
const DefaultWarningThreshold = 0.80

// charsPerToken is the estimation heuristic: roughly four characters of
// English text per token.
const charsPerToken = 4

// EstimateTokens estimates the token count of a text.
func EstimateTokens(text string) int64 {
	return int64(len(text) / charsPerToken)
}

// Estimate computes the expected USD cost of a call: estimated input tokens
// from the prompt text plus the expected output, priced against the tier.
// It is a pure function.
func Estimate(text string, expectedOutputTokens int64, tier models.ModelTier) float64 {
	return tier.Cost(EstimateTokens(text), expectedOutputTokens)
}

// Decision is the outcome of a pre-call budget check. A denial is expected
// control flow, not an error: the caller terminates its run with a
// budget-exceeded outcome and must not retry.
type Decision struct {
	// Allowed reports whether the call may proceed.
	Allowed bool
	// Reason explains a denial.
	Reason string
	// Warning is set when the projected spend crosses the warning threshold.
	// It never denies the call.
	Warning bool
}

type reservation struct {
	agentID string
	amount  float64
}

// Guard wraps the ledger with an atomic check-then-reserve protocol.
//
// MayProceed debits an estimated amount from an in-memory reservation
// counter under the guard's lock; Commit reconciles the estimate against
// the actual cost by appending the real record and then releasing the
// reservation. Two concurrent calls therefore cannot both pass the check
// against the same headroom. Release returns a reservation without committing, for
// denied, failed, or cancelled calls.
type Guard struct {
	ledger        *Ledger
	ceiling       float64
	agentCeilings map[string]float64
	warnThreshold float64
	onWarning     func(spent, ceiling float64)

	mu            sync.Mutex
	reserved      map[string]reservation
	reservedTotal float64
	reservedAgent map[string]float64
	warned        bool
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	// CeilingUSD is the global daily spend ceiling.
	CeilingUSD float64
	// AgentCeilingsUSD holds optional per-agent daily sub-ceilings.
	AgentCeilingsUSD map[string]float64
	// WarningThreshold overrides DefaultWarningThreshold when > 0.
	WarningThreshold float64
	// OnWarning is invoked (at most once per guard) when projected spend
	// first crosses the warning threshold. It must not block.
	OnWarning func(spent, ceiling float64)
}

// NewGuard creates a Guard over the given ledger.
func NewGuard(ledger *Ledger, cfg GuardConfig) *Guard {
	threshold := cfg.WarningThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultWarningThreshold
	}
	return &Guard{
		ledger:        ledger,
		ceiling:       cfg.CeilingUSD,
		agentCeilings: cfg.AgentCeilingsUSD,
		warnThreshold: threshold,
		onWarning:     cfg.OnWarning,
		reserved:      make(map[string]reservation),
		reservedAgent: make(map[string]float64),
	}
}

// MayProceed checks the global and per-agent ceilings and, when allowed,
// reserves the estimated amount under callID. The reservation is held until
// Commit or Release.
func (g *Guard) MayProceed(agentID, callID string, estimatedUSD float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	spent := g.ledger.SpentToday("")
	projected := spent + g.reservedTotal + estimatedUSD

	if g.ceiling > 0 && projected > g.ceiling {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("daily ceiling $%.2f would be exceeded (spent $%.2f, reserved $%.2f, estimated $%.4f)",
				g.ceiling, spent, g.reservedTotal, estimatedUSD),
		}
	}

	if agentCeiling, ok := g.agentCeilings[agentID]; ok && agentCeiling > 0 {
		agentSpent := g.ledger.SpentToday(agentID)
		if agentSpent+g.reservedAgent[agentID]+estimatedUSD > agentCeiling {
			return Decision{
				Allowed: false,
				Reason: fmt.Sprintf("agent %q daily ceiling $%.2f would be exceeded (spent $%.2f)",
					agentID, agentCeiling, agentSpent),
			}
		}
	}

	g.reserved[callID] = reservation{agentID: agentID, amount: estimatedUSD}
	g.reservedTotal += estimatedUSD
	g.reservedAgent[agentID] += estimatedUSD

	warning := false
	if g.ceiling > 0 && projected >= g.warnThreshold*g.ceiling {
		warning = true
		if !g.warned {
			g.warned = true
			if g.onWarning != nil {
				go g.onWarning(spent, g.ceiling)
			}
		}
	}

	return Decision{Allowed: true, Warning: warning}
}

// Commit reconciles a reservation with the call's actual usage. The record
// is appended to the ledger first and the reservation released only after
// the append lands, so a concurrent MayProceed always sees at least one of
// the two. In the window where it sees both, the call is over-counted and
// can only be denied, never admitted against headroom that is already gone.
// Duplicate commits for the same call id are rejected with
// ErrDuplicateCommit, leave the ledger unchanged, and keep the reservation.
func (g *Guard) Commit(rec models.UsageRecord) error {
	if err := g.ledger.Append(rec); err != nil {
		return err
	}
	g.release(rec.CallID)
	return nil
}

// Release drops a held reservation without committing usage. It is safe to
// call for unknown call ids. Use it when a reserved call is cancelled or
// fails before producing usage.
func (g *Guard) Release(callID string) {
	g.release(callID)
}

func (g *Guard) release(callID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, ok := g.reserved[callID]
	if !ok {
		return
	}
	delete(g.reserved, callID)
	g.reservedTotal -= res.amount
	g.reservedAgent[res.agentID] -= res.amount
	if g.reservedAgent[res.agentID] <= 0 {
		delete(g.reservedAgent, res.agentID)
	}
}

// Remaining returns today's uncommitted headroom under the global ceiling,
// with held reservations counted as spent.
func (g *Guard) Remaining() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ceiling - g.ledger.SpentToday("") - g.reservedTotal
}

// Ceiling returns the configured global daily ceiling.
func (g *Guard) Ceiling() float64 {
	return g.ceiling
}
