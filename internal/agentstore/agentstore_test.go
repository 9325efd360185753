package agentstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agents.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartSessionAndLatestForSlot(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.StartSession("sess-1", "alpha", "fix the bug"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	sess, err := s.LatestForSlot("alpha")
	if err != nil {
		t.Fatalf("LatestForSlot: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session, got nil")
	}
	if sess.Prompt != "fix the bug" || sess.TurnCount != 0 {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestLatestForSlotNoSessions(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	sess, err := s.LatestForSlot("never-started")
	if err != nil {
		t.Fatalf("LatestForSlot: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %+v", sess)
	}
}

func TestRecordTurnIncrements(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.StartSession("sess-1", "alpha", "do work"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.RecordTurn("sess-1"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := s.RecordTurn("sess-1"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	sess, err := s.LatestForSlot("alpha")
	if err != nil {
		t.Fatalf("LatestForSlot: %v", err)
	}
	if sess.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2", sess.TurnCount)
	}
}

func TestLatestForSlotPicksMostRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.StartSession("sess-1", "alpha", "first"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.StartSession("sess-2", "alpha", "second"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	sess, err := s.LatestForSlot("alpha")
	if err != nil {
		t.Fatalf("LatestForSlot: %v", err)
	}
	if sess.ID != "sess-2" {
		t.Fatalf("LatestForSlot picked %q, want sess-2", sess.ID)
	}
}
