package logpipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slotforge/slotforge/internal/model"
)

func TestClassifySeverity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		want model.LogSeverity
	}{
		{"Unhandled exception in Program.Main", model.SeverityError},
		{"FATAL: out of memory", model.SeverityError},
		{"warn: connection pool nearly exhausted", model.SeverityWarn},
		{"debug: loaded configuration", model.SeverityDebug},
		{"trace: entering handler", model.SeverityDebug},
		{"info: listening on port 5000", model.SeverityInfo},
	}
	for _, tc := range cases {
		if got := ClassifySeverity(tc.line); got != tc.want {
			t.Errorf("ClassifySeverity(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestClassifySeverityErrorBeatsWarn(t *testing.T) {
	t.Parallel()

	if got := ClassifySeverity("warn: retrying after error"); got != model.SeverityError {
		t.Fatalf("ClassifySeverity() = %v, want SeverityError to win over warn", got)
	}
}

func TestRingBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	r := NewRingBuffer()
	for i := 0; i < ringCapacity+5; i++ {
		r.Push(model.LogEntry{Line: string(rune('a' + i%26))})
	}

	snap := r.Snapshot()
	if len(snap) != ringCapacity {
		t.Fatalf("Snapshot() len = %d, want %d", len(snap), ringCapacity)
	}
}

func TestRingBufferPreservesOrder(t *testing.T) {
	t.Parallel()

	r := NewRingBuffer()
	r.Push(model.LogEntry{Line: "first"})
	r.Push(model.LogEntry{Line: "second"})
	r.Push(model.LogEntry{Line: "third"})

	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Line != "first" || snap[2].Line != "third" {
		t.Fatalf("Snapshot() = %+v", snap)
	}
}

func TestActivityTrackerAttentionRules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewActivityTracker()

	blocked := a.Recompute("slot-a", now, AttentionInputs{AgentStatus: model.AgentBlocked})
	if !blocked.NeedsAttention || blocked.AttentionReason != "agent is blocked" {
		t.Fatalf("blocked agent should need attention: %+v", blocked)
	}

	errored := a.Recompute("slot-b", now, AttentionInputs{SlotStatus: model.SlotError})
	if !errored.NeedsAttention {
		t.Fatalf("errored stack should need attention: %+v", errored)
	}

	a.Record("slot-c", "doing work", now.Add(-400*time.Second))
	idle := a.Recompute("slot-c", now, AttentionInputs{AgentStatus: model.AgentActive})
	if !idle.NeedsAttention {
		t.Fatalf("active agent idle 400s should need attention: %+v", idle)
	}

	a.Record("slot-d", "doing work", now.Add(-10*time.Second))
	fresh := a.Recompute("slot-d", now, AttentionInputs{AgentStatus: model.AgentActive})
	if fresh.NeedsAttention {
		t.Fatalf("recently active agent should not need attention: %+v", fresh)
	}
}

func TestActivityTrackerPrunesOldTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewActivityTracker()
	a.Record("slot-a", "old", now.Add(-200*time.Second))
	a.Record("slot-a", "recent", now.Add(-5*time.Second))

	activity := a.Recompute("slot-a", now, AttentionInputs{})
	if len(activity.RecentEvents) != 1 {
		t.Fatalf("RecentEvents = %v, want only the in-window timestamp", activity.RecentEvents)
	}
}

func TestSparklineNormalizesToEight(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewActivityTracker()
	for i := 0; i < 5; i++ {
		a.Record("slot-a", "x", now.Add(-1*time.Second))
	}

	spark := a.Sparkline("slot-a", now)
	max := 0
	for _, v := range spark {
		if v > max {
			max = v
		}
	}
	if max != 8 {
		t.Fatalf("Sparkline max bucket = %d, want 8", max)
	}
}

func TestEventBusFanOut(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	chA, cancelA := bus.Subscribe()
	chB, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Publish(model.LogEntry{Line: "hello"})

	for _, ch := range []<-chan model.LogEntry{chA, chB} {
		select {
		case e := <-ch:
			if e.Line != "hello" {
				t.Fatalf("got %q, want %q", e.Line, "hello")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventBusCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ch, cancel := bus.Subscribe()
	cancel()

	bus.Publish(model.LogEntry{Line: "ignored"})

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel was never closed after cancel")
	}
}

func TestTailerEmitsAppendedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stack.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("creating log file: %v", err)
	}

	tailer := NewTailer(path, "slot-a", model.SourceStack)

	var got []model.LogEntry
	done := make(chan struct{})
	go func() {
		tailer.Run(func(e model.LogEntry) {
			got = append(got, e)
			if len(got) == 2 {
				close(done)
			}
		})
	}()
	t.Cleanup(tailer.Stop)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log file: %v", err)
	}
	f.WriteString("line one\nline two\n")
	f.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("tailer did not emit both lines in time, got %d", len(got))
	}
}
