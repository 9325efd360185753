// Package ports allocates loopback TCP ports for slot service stacks,
// tracking what it has handed out so two slots never collide.
package ports

import (
	"net"
	"sync"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotz"
)

const maxAttempts = 100

// Allocator hands out unique ephemeral ports by binding loopback
// listeners and immediately closing them, then remembering the port it
// read back so later allocations (including another process's, if the
// OS happens to reuse it) can be noticed and retried.
type Allocator struct {
	mu        sync.Mutex
	allocated map[int]struct{}
}

func New() *Allocator {
	return &Allocator{allocated: make(map[int]struct{})}
}

func (a *Allocator) Allocate(name string) (model.PortAllocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < maxAttempts; i++ {
		port, err := findAvailablePort()
		if err != nil {
			return model.PortAllocation{}, slotz.Wrap(slotz.KindPortAllocation, name, err)
		}
		if _, taken := a.allocated[port]; taken {
			continue
		}
		a.allocated[port] = struct{}{}
		return model.PortAllocation{Name: name, Port: port}, nil
	}
	return model.PortAllocation{}, slotz.Wrapf(slotz.KindPortAllocation, name,
		"could not find an available port after %d attempts", maxAttempts)
}

// AllocateForOverrides resolves a manifest's port_overrides map into
// concrete allocations: ports not yet claimed by this allocator keep
// their requested value, ports already in use fall back to a fresh
// random allocation for that name.
func (a *Allocator) AllocateForOverrides(overrides map[string]int) ([]model.PortAllocation, error) {
	allocations := make([]model.PortAllocation, 0, len(overrides))
	for name, port := range overrides {
		a.mu.Lock()
		_, taken := a.allocated[port]
		if !taken {
			a.allocated[port] = struct{}{}
		}
		a.mu.Unlock()

		if taken {
			alloc, err := a.Allocate(name)
			if err != nil {
				return nil, err
			}
			allocations = append(allocations, alloc)
			continue
		}
		allocations = append(allocations, model.PortAllocation{Name: name, Port: port})
	}
	return allocations, nil
}

// Reserve marks port as already allocated without binding a listener,
// used on daemon startup to re-claim ports recorded in persisted slot
// state before any new allocation can collide with them.
func (a *Allocator) Reserve(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocated[port] = struct{}{}
}

func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allocated, port)
}

func findAvailablePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
