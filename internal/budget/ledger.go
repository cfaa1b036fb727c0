// Package budget enforces the shared cost envelope across agent runs.
// It provides the append-only usage ledger and the guard that answers
// "may this call proceed" before any model call is made.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avaluev/conductor/pkg/models"
)

// ErrDuplicateCommit is returned when a usage record with an already
// committed call id is appended again.
var ErrDuplicateCommit = errors.New("usage record already committed for call id")

// Ledger is the append-only, concurrency-safe record of token and cost
// usage. Records are never mutated or deleted. When opened with a store,
// every append is also persisted.
type Ledger struct {
	mu      sync.RWMutex
	records []models.UsageRecord
	seen    map[string]struct{}
	store   *Store

	// now is injectable for day-boundary tests.
	now func() time.Time
}

// NewLedger creates an in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen: make(map[string]struct{}),
		now:  time.Now,
	}
}

// NewPersistentLedger creates a ledger backed by the given store and loads
// today's records from it so restarts keep the day's spend intact.
func NewPersistentLedger(store *Store) (*Ledger, error) {
	l := NewLedger()
	l.store = store

	records, err := store.RecordsSince(dayStart(l.now()))
	if err != nil {
		return nil, fmt.Errorf("loading today's usage records: %w", err)
	}
	for _, r := range records {
		l.records = append(l.records, r)
		l.seen[r.CallID] = struct{}{}
	}
	return l, nil
}

// Append adds a usage record to the ledger. Appends are idempotent per call
// id: a duplicate commit is rejected with ErrDuplicateCommit and leaves the
// ledger unchanged.
func (l *Ledger) Append(rec models.UsageRecord) error {
	if rec.CallID == "" {
		return errors.New("usage record missing call id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[rec.CallID]; dup {
		return ErrDuplicateCommit
	}

	if l.store != nil {
		if err := l.store.Insert(rec); err != nil {
			return fmt.Errorf("persisting usage record: %w", err)
		}
	}

	l.records = append(l.records, rec)
	l.seen[rec.CallID] = struct{}{}
	return nil
}

// SpentToday returns the cumulative committed cost since the current day
// boundary, optionally scoped to one agent (empty agentID means global).
func (l *Ledger) SpentToday(agentID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := dayStart(l.now())
	var total float64
	for _, r := range l.records {
		if r.Timestamp.Before(start) {
			continue
		}
		if agentID != "" && r.AgentID != agentID {
			continue
		}
		total += r.Cost
	}
	return total
}

// TotalsToday aggregates today's usage per agent. The empty key holds the
// global totals.
func (l *Ledger) TotalsToday() map[string]models.UsageTotals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := dayStart(l.now())
	out := make(map[string]models.UsageTotals)
	for _, r := range l.records {
		if r.Timestamp.Before(start) {
			continue
		}
		global := out[""]
		global.Add(r)
		out[""] = global

		agent := out[r.AgentID]
		agent.Add(r)
		out[r.AgentID] = agent
	}
	return out
}

// Len returns the number of records held in memory.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// dayStart returns midnight UTC for the given time. The daily ceiling is
// scoped to UTC days.
func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
