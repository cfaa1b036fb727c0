package budget

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/avaluev/conductor/pkg/models"
)

func TestLedger_AppendAndSpentToday(t *testing.T) {
	l := NewLedger()

	if err := l.Append(record("a", "analyst", 0.25)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(record("b", "writer", 0.50)); err != nil {
		t.Fatal(err)
	}

	if got := l.SpentToday(""); got != 0.75 {
		t.Errorf("global spend = %v, want 0.75", got)
	}
	if got := l.SpentToday("analyst"); got != 0.25 {
		t.Errorf("analyst spend = %v, want 0.25", got)
	}
}

func TestLedger_RejectsDuplicateAndEmptyCallID(t *testing.T) {
	l := NewLedger()

	if err := l.Append(record("a", "analyst", 0.25)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(record("a", "analyst", 0.25)); !errors.Is(err, ErrDuplicateCommit) {
		t.Errorf("expected ErrDuplicateCommit, got %v", err)
	}
	if err := l.Append(models.UsageRecord{AgentID: "analyst"}); err == nil {
		t.Error("expected error for missing call id")
	}
	if l.Len() != 1 {
		t.Errorf("ledger length = %d, want 1", l.Len())
	}
}

func TestLedger_DayBoundary(t *testing.T) {
	l := NewLedger()

	yesterday := record("old", "analyst", 5.00)
	yesterday.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	if err := l.Append(yesterday); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(record("new", "analyst", 0.25)); err != nil {
		t.Fatal(err)
	}

	if got := l.SpentToday(""); got != 0.25 {
		t.Errorf("spend should exclude prior days: got %v", got)
	}
}

func TestPersistentLedger_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")

	store, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewPersistentLedger(store)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Append(record("a", "analyst", 0.25)); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen; today's spend must survive the restart.
	store2, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()

	l2, err := NewPersistentLedger(store2)
	if err != nil {
		t.Fatal(err)
	}
	if got := l2.SpentToday(""); got != 0.25 {
		t.Errorf("reloaded spend = %v, want 0.25", got)
	}
	// The call id is still protected against duplicate commits.
	if err := l2.Append(record("a", "analyst", 0.25)); !errors.Is(err, ErrDuplicateCommit) {
		t.Errorf("expected ErrDuplicateCommit after reload, got %v", err)
	}
}
