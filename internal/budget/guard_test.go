package budget

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avaluev/conductor/pkg/models"
)

func testTier() models.ModelTier {
	return models.ModelTier{
		ID:               "test-model",
		InputPerMillion:  3.00,
		OutputPerMillion: 15.00,
		CapabilityRank:   2,
	}
}

func record(callID, agentID string, cost float64) models.UsageRecord {
	return models.UsageRecord{
		CallID:      callID,
		AgentID:     agentID,
		Model:       "test-model",
		InputTokens: 1000,
		OutputTokens: 500,
		Cost:        cost,
		Timestamp:   time.Now(),
	}
}

func TestEstimate(t *testing.T) {
	// 4000 chars ~= 1000 input tokens at $3/1M, plus 1000 output at $15/1M.
	text := make([]byte, 4000)
	for i := range text {
		text[i] = 'a'
	}

	got := Estimate(string(text), 1000, testTier())
	want := 0.003 + 0.015
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Estimate = %v, want %v", got, want)
	}
}

func TestMayProceed_DeniesOverCeiling(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 1.00})

	d := g.MayProceed("analyst", "call-1", 0.50)
	if !d.Allowed {
		t.Fatalf("first call denied: %s", d.Reason)
	}

	// Reservation from call-1 counts against headroom.
	d = g.MayProceed("analyst", "call-2", 0.60)
	if d.Allowed {
		t.Error("second call should be denied while first reservation is held")
	}
	if d.Reason == "" {
		t.Error("denial should carry a reason")
	}
}

func TestCommit_ReconcilesReservation(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 1.00})

	if d := g.MayProceed("analyst", "call-1", 0.90); !d.Allowed {
		t.Fatalf("denied: %s", d.Reason)
	}

	// Actual cost came in lower than the estimate; the overestimate is
	// credited back on commit.
	if err := g.Commit(record("call-1", "analyst", 0.10)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if d := g.MayProceed("analyst", "call-2", 0.80); !d.Allowed {
		t.Errorf("call-2 should fit after reconciliation: %s", d.Reason)
	}
}

func TestCommit_IdempotentRejection(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 10.00})

	g.MayProceed("analyst", "call-1", 0.10)
	if err := g.Commit(record("call-1", "analyst", 0.10)); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	err := g.Commit(record("call-1", "analyst", 0.10))
	if !errors.Is(err, ErrDuplicateCommit) {
		t.Errorf("expected ErrDuplicateCommit, got %v", err)
	}
	if got := g.ledger.SpentToday(""); got != 0.10 {
		t.Errorf("duplicate commit changed spend: %v", got)
	}
}

// The record must land in the ledger before the reservation is dropped.
// If the reservation were released first, a concurrent check in between
// would see neither the reservation nor the committed cost and could admit
// a second call against headroom that is already spent. A failed append
// keeping the reservation held is the observable proof of the ordering.
func TestCommit_KeepsReservationWhenAppendFails(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 10.00})

	if err := g.ledger.Append(record("call-1", "agent", 6.00)); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}
	if d := g.MayProceed("agent", "call-1", 3.00); !d.Allowed {
		t.Fatalf("reservation denied: %s", d.Reason)
	}

	err := g.Commit(record("call-1", "agent", 3.00))
	if !errors.Is(err, ErrDuplicateCommit) {
		t.Fatalf("expected ErrDuplicateCommit, got %v", err)
	}

	// Spent $6 plus the still-held $3 reservation leaves only $1 headroom.
	if d := g.MayProceed("agent", "call-2", 2.00); d.Allowed {
		t.Error("reservation was dropped even though the append failed")
	}
	g.Release("call-1")
	if d := g.MayProceed("agent", "call-2", 2.00); !d.Allowed {
		t.Errorf("headroom not restored after release: %s", d.Reason)
	}
}

func TestRelease_ReturnsHeadroom(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 1.00})

	g.MayProceed("analyst", "call-1", 0.90)
	g.Release("call-1")

	if d := g.MayProceed("analyst", "call-2", 0.90); !d.Allowed {
		t.Errorf("headroom not returned after release: %s", d.Reason)
	}
	// Releasing an unknown id is a no-op.
	g.Release("never-reserved")
}

func TestAgentCeiling(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{
		CeilingUSD:       10.00,
		AgentCeilingsUSD: map[string]float64{"analyst": 0.50},
	})

	if d := g.MayProceed("analyst", "call-1", 0.40); !d.Allowed {
		t.Fatalf("denied: %s", d.Reason)
	}
	if d := g.MayProceed("analyst", "call-2", 0.20); d.Allowed {
		t.Error("agent sub-ceiling should deny the second call")
	}
	// Other agents are unaffected by analyst's sub-ceiling.
	if d := g.MayProceed("writer", "call-3", 2.00); !d.Allowed {
		t.Errorf("writer denied: %s", d.Reason)
	}
}

func TestWarningThreshold_DoesNotDeny(t *testing.T) {
	var mu sync.Mutex
	warned := false

	g := NewGuard(NewLedger(), GuardConfig{
		CeilingUSD:       1.00,
		WarningThreshold: 0.80,
		OnWarning: func(spent, ceiling float64) {
			mu.Lock()
			warned = true
			mu.Unlock()
		},
	})

	d := g.MayProceed("analyst", "call-1", 0.85)
	if !d.Allowed {
		t.Fatalf("warning must not deny: %s", d.Reason)
	}
	if !d.Warning {
		t.Error("expected warning flag at 85% of ceiling")
	}

	// The callback runs asynchronously.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		ok := warned
		mu.Unlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("OnWarning callback never fired")
		}
		time.Sleep(time.Millisecond)
	}
}

// Scenario A: ceiling $10.00, two concurrent calls each estimating $6.00.
// Exactly one must pass; total committed stays at or under the ceiling.
func TestConcurrentReservations_ExactlyOneAllowed(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: 10.00})

	var wg sync.WaitGroup
	decisions := make([]Decision, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			callID := fmt.Sprintf("call-%d", i)
			d := g.MayProceed("agent", callID, 6.00)
			if d.Allowed {
				if err := g.Commit(record(callID, "agent", 6.00)); err != nil {
					t.Errorf("commit failed: %v", err)
				}
			}
			decisions[i] = d
		}(i)
	}
	wg.Wait()

	allowed := 0
	for _, d := range decisions {
		if d.Allowed {
			allowed++
		}
	}
	if allowed != 1 {
		t.Errorf("expected exactly 1 allowed call, got %d", allowed)
	}
	if spent := g.ledger.SpentToday(""); spent > 10.00 {
		t.Errorf("committed spend %v exceeds ceiling", spent)
	}
}

// Budget invariant under N racing runs: committed cost never exceeds the
// ceiling regardless of interleaving.
func TestConcurrentReservations_NeverOverspend(t *testing.T) {
	const (
		ceiling = 5.00
		workers = 32
		est     = 0.40
	)
	g := NewGuard(NewLedger(), GuardConfig{CeilingUSD: ceiling})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			callID := fmt.Sprintf("c-%d", i)
			if d := g.MayProceed("agent", callID, est); d.Allowed {
				_ = g.Commit(record(callID, "agent", est))
			}
		}(i)
	}
	wg.Wait()

	if spent := g.ledger.SpentToday(""); spent > ceiling+1e-9 {
		t.Errorf("committed spend %v exceeds ceiling %v", spent, ceiling)
	}
}

func TestSummarize(t *testing.T) {
	g := NewGuard(NewLedger(), GuardConfig{
		CeilingUSD:       10.00,
		AgentCeilingsUSD: map[string]float64{"analyst": 5.00},
	})

	g.MayProceed("analyst", "c1", 1.0)
	g.Commit(models.UsageRecord{
		CallID: "c1", AgentID: "analyst", Model: "m",
		InputTokens: 9000, OutputTokens: 3000,
		Cost: 1.0, Savings: -0.05, Timestamp: time.Now(),
	})

	s := g.Summarize("")
	if s.SpentUSD != 1.0 {
		t.Errorf("spent = %v, want 1.0", s.SpentUSD)
	}
	if s.RemainingUSD != 9.0 {
		t.Errorf("remaining = %v, want 9.0", s.RemainingUSD)
	}
	if s.SavingsUSD != -0.05 {
		t.Errorf("savings = %v, want -0.05", s.SavingsUSD)
	}
	if len(s.Agents) != 1 || s.Agents[0].AgentID != "analyst" {
		t.Fatalf("unexpected agent breakdown: %+v", s.Agents)
	}
	if s.Agents[0].RemainingUSD != 4.0 {
		t.Errorf("agent remaining = %v, want 4.0", s.Agents[0].RemainingUSD)
	}

	// 12000 tokens in one call crosses the high-tokens threshold.
	found := false
	for _, sug := range s.Suggestions {
		if sug.AgentID == "analyst" && sug.Issue == "high_tokens_per_call" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected high_tokens_per_call suggestion, got %+v", s.Suggestions)
	}
}
