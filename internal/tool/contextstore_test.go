package tool

import (
	"path/filepath"
	"testing"
)

func openTestContextStore(t *testing.T) *ContextStore {
	t.Helper()
	s, err := OpenContextStore(filepath.Join(t.TempDir(), "context.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContextStore_PutGet(t *testing.T) {
	s := openTestContextStore(t)

	if err := s.Put("icp", "mid-market SaaS ops leads", "audience"); err != nil {
		t.Fatal(err)
	}

	item, ok, err := s.Get("icp")
	if err != nil || !ok {
		t.Fatalf("Get = %v %v", ok, err)
	}
	if item.Value != "mid-market SaaS ops leads" || item.Category != "audience" {
		t.Errorf("unexpected item: %+v", item)
	}

	if _, ok, _ := s.Get("missing"); ok {
		t.Error("missing key should not resolve")
	}
}

func TestContextStore_PutOverwrites(t *testing.T) {
	s := openTestContextStore(t)

	if err := s.Put("k", "v1", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", "v2", ""); err != nil {
		t.Fatal(err)
	}

	item, _, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if item.Value != "v2" {
		t.Errorf("value = %q, want overwrite", item.Value)
	}
}

func TestContextStore_ListByCategory(t *testing.T) {
	s := openTestContextStore(t)

	s.Put("a", "1", "metrics")
	s.Put("b", "2", "metrics")
	s.Put("c", "3", "audience")

	items, err := s.List("metrics")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}

	all, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}
