package ports

import "testing"

func TestAllocateNeverRepeats(t *testing.T) {
	t.Parallel()

	a := New()
	seen := make(map[int]struct{})
	for i := 0; i < 20; i++ {
		alloc, err := a.Allocate("slot-a")
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if _, dup := seen[alloc.Port]; dup {
			t.Fatalf("port %d allocated twice", alloc.Port)
		}
		seen[alloc.Port] = struct{}{}
	}
}

func TestReleaseAllowsReuseBySomeoneElse(t *testing.T) {
	t.Parallel()

	a := New()
	alloc, err := a.Allocate("slot-a")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	a.Release(alloc.Port)

	a.mu.Lock()
	_, stillTracked := a.allocated[alloc.Port]
	a.mu.Unlock()
	if stillTracked {
		t.Fatalf("port %d still tracked after Release", alloc.Port)
	}
}

func TestReserveBlocksFutureAllocation(t *testing.T) {
	t.Parallel()

	a := New()
	alloc, err := a.Allocate("probe")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Release(alloc.Port)
	a.Reserve(alloc.Port)

	for i := 0; i < 20; i++ {
		got, err := a.Allocate("slot-b")
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if got.Port == alloc.Port {
			t.Fatalf("Allocate returned reserved port %d", alloc.Port)
		}
	}
}

func TestAllocateForOverridesKeepsFreePorts(t *testing.T) {
	t.Parallel()

	a := New()
	probe, err := a.Allocate("probe")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	freePort := probe.Port
	a.Release(freePort)

	allocs, err := a.AllocateForOverrides(map[string]int{"web": freePort})
	if err != nil {
		t.Fatalf("AllocateForOverrides: %v", err)
	}
	if len(allocs) != 1 || allocs[0].Port != freePort || allocs[0].Name != "web" {
		t.Fatalf("unexpected allocations: %+v", allocs)
	}
}

func TestAllocateForOverridesFallsBackWhenTaken(t *testing.T) {
	t.Parallel()

	a := New()
	taken, err := a.Allocate("web")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	allocs, err := a.AllocateForOverrides(map[string]int{"web": taken.Port})
	if err != nil {
		t.Fatalf("AllocateForOverrides: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("expected one allocation, got %d", len(allocs))
	}
	if allocs[0].Port == taken.Port {
		t.Fatalf("AllocateForOverrides returned an already-taken port")
	}
}
