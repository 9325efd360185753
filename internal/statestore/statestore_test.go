package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slotforge/slotforge/internal/model"
)

func TestLoadMissingFileReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	slots, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", slots)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir)

	want := []*model.Slot{
		model.NewSlot("alpha", "/repos/alpha", "main", filepath.Join(dir, "alpha")),
		model.NewSlot("beta", "/repos/beta", "feature/x", filepath.Join(dir, "beta")),
	}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Branch != want[i].Branch {
			t.Fatalf("slot %d mismatch: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir)

	if err := s.Save([]*model.Slot{model.NewSlot("only", "/r", "main", dir)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "state.json.tmp")); err == nil {
		t.Fatalf("state.json.tmp should have been renamed away")
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("state.json missing: %v", err)
	}
}
