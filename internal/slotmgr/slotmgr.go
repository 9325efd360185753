// Package slotmgr composes every other component into the orchestration
// core: slot lifecycle, service-stack and agent supervision, batch
// operations, and the canonical registry persisted to disk.
package slotmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotforge/slotforge/internal/agentclient"
	"github.com/slotforge/slotforge/internal/agentstore"
	"github.com/slotforge/slotforge/internal/blueprint"
	"github.com/slotforge/slotforge/internal/discovery"
	"github.com/slotforge/slotforge/internal/logpipe"
	"github.com/slotforge/slotforge/internal/manifest"
	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/ports"
	"github.com/slotforge/slotforge/internal/reposource"
	"github.com/slotforge/slotforge/internal/slotlog"
	"github.com/slotforge/slotforge/internal/slotz"
	"github.com/slotforge/slotforge/internal/stacksup"
	"github.com/slotforge/slotforge/internal/statestore"
)

// Manager is the Slot Manager. It owns the canonical slot registry and
// fans requests out to the other components.
type Manager struct {
	mu    sync.RWMutex
	slots []*model.Slot

	slotsDir string
	store    *statestore.Store
	ports    *ports.Allocator
	bps      *blueprint.Store
	agents   *agentstore.Store

	events   *logpipe.EventBus
	ring     *logpipe.RingBuffer
	activity *logpipe.ActivityTracker

	stacksMu sync.Mutex
	stacks   map[string]*stacksup.Handle

	tailersMu sync.Mutex
	tailers   map[string]*logpipe.Tailer

	runsMu sync.Mutex
	runs   map[string]*BatchRun

	log zerolog.Logger
}

// Config bundles Manager's construction-time dependencies.
type Config struct {
	SlotsDir string
}

func New(cfg Config) (*Manager, error) {
	agentDBPath := filepath.Join(cfg.SlotsDir, "agents.db")
	if err := os.MkdirAll(cfg.SlotsDir, 0o755); err != nil {
		return nil, slotz.Wrap(slotz.KindState, cfg.SlotsDir, err)
	}
	agents, err := agentstore.Open(agentDBPath)
	if err != nil {
		return nil, err
	}

	return &Manager{
		slotsDir: cfg.SlotsDir,
		store:    statestore.New(cfg.SlotsDir),
		ports:    ports.New(),
		bps:      blueprint.NewStore(cfg.SlotsDir),
		agents:   agents,
		events:   logpipe.NewEventBus(),
		ring:     logpipe.NewRingBuffer(),
		activity: logpipe.NewActivityTracker(),
		stacks:   make(map[string]*stacksup.Handle),
		tailers:  make(map[string]*logpipe.Tailer),
		runs:     make(map[string]*BatchRun),
		log:      slotlog.For("slotmgr"),
	}, nil
}

// LoadState hydrates the registry from disk.
func (m *Manager) LoadState() error {
	slots, err := m.store.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.slots = slots
	m.mu.Unlock()
	return nil
}

// ReconcileAgentHosts resets agent/slot status for any slot whose agent
// host process is no longer running, and claims the ports of slots
// whose agent host survived a daemon restart so they aren't handed out
// again.
func (m *Manager) ReconcileAgentHosts() error {
	running, err := agentclient.ListRunning(m.slotsDir)
	if err != nil {
		return err
	}
	runningSet := make(map[string]struct{}, len(running))
	for _, n := range running {
		runningSet[n] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if _, alive := runningSet[s.Name]; !alive {
			s.Status = model.SlotReady
			s.AgentStatus = model.AgentNone
			s.AgentStartedAt = nil
		}
		for _, alloc := range s.PortAllocations {
			m.ports.Reserve(alloc.Port)
		}
	}
	return m.persistLocked()
}

// Subscribe returns a stream of log events and a cancel function, for
// the CLI/TUI surface to poll without holding the registry lock.
func (m *Manager) Subscribe() (<-chan model.LogEntry, func()) {
	return m.events.Subscribe()
}

func (m *Manager) RecentLog() []model.LogEntry {
	return m.ring.Snapshot()
}

// Slots returns a snapshot copy of the registry.
func (m *Manager) Slots() []*model.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Slot, len(m.slots))
	for i, s := range m.slots {
		clone := *s
		out[i] = &clone
	}
	return out
}

func (m *Manager) Slot(name string) (*model.Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.slots {
		if s.Name == name {
			clone := *s
			return &clone, true
		}
	}
	return nil, false
}

func (m *Manager) findLocked(name string) (*model.Slot, error) {
	for _, s := range m.slots {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, slotz.SlotNotFound(name)
}

func (m *Manager) persistLocked() error {
	return m.store.Save(m.slots)
}

func (m *Manager) updateSlot(name string, f func(*model.Slot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, err := m.findLocked(name)
	if err != nil {
		return err
	}
	f(slot)
	return m.persistLocked()
}

// CreateSlot clones source into a fresh worktree, checks out branch (or
// records the current one), loads the repo manifest if present and
// allocates its declared ports, then registers the slot as Ready.
func (m *Manager) CreateSlot(ctx context.Context, name, source, branch, prompt string) (*model.Slot, error) {
	m.mu.Lock()
	if _, err := m.findLocked(name); err == nil {
		m.mu.Unlock()
		return nil, slotz.SlotAlreadyExists(name)
	}
	m.mu.Unlock()

	clonePath := filepath.Join(m.slotsDir, name)
	sourceLabel := resolveSourceLabel(source)

	slot := model.NewSlot(name, sourceLabel, branch, clonePath)
	if slot.Branch == "" {
		slot.Branch = "unknown"
	}

	if err := reposource.Clone(ctx, sourceLabel, clonePath); err != nil {
		return nil, err
	}

	if branch != "" {
		exists, err := reposource.BranchExists(ctx, clonePath, branch)
		if err != nil {
			return nil, err
		}
		if err := reposource.Checkout(ctx, clonePath, branch, !exists); err != nil {
			return nil, err
		}
	} else {
		current, err := reposource.CurrentBranch(ctx, clonePath)
		if err != nil {
			return nil, err
		}
		slot.Branch = current
	}

	if defaultBranch, err := reposource.DefaultBranch(ctx, clonePath); err == nil {
		slot.DefaultBranch = defaultBranch
	}

	if cfg, err := manifest.Load(clonePath); err == nil {
		allocations, err := m.ports.AllocateForOverrides(cfg.PortOverrides)
		if err != nil {
			return nil, err
		}
		slot.PortAllocations = allocations

		if len(cfg.Setup) > 0 {
			logPath := slot.StackLogPath()
			if err := stacksup.RunSetup(ctx, clonePath, cfg.Setup, func(line string) {
				now := time.Now().UTC()
				entry := model.LogEntry{
					SlotName:  name,
					Source:    model.SourceStack,
					Severity:  logpipe.ClassifySeverity(line),
					Line:      line,
					Timestamp: now,
				}
				appendLine(logPath, line)
				m.ring.Push(entry)
				m.events.Publish(entry)
				m.activity.Record(name, line, now)
			}); err != nil {
				return nil, err
			}
		}
	} else if slotz.KindOf(err) != slotz.KindConfigNotFound {
		return nil, err
	}

	slot.Status = model.SlotReady

	m.mu.Lock()
	m.slots = append(m.slots, slot)
	if err := m.persistLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	if prompt != "" {
		if err := m.SpawnAgent(ctx, name, prompt, "", 0); err != nil {
			return nil, err
		}
	}

	clone := *slot
	return &clone, nil
}

func resolveSourceLabel(source string) string {
	switch {
	case strings.HasPrefix(source, "https://"), strings.HasPrefix(source, "http://"),
		strings.HasPrefix(source, "git@"), strings.HasPrefix(source, "ssh://"):
		return source
	default:
		abs, err := filepath.Abs(source)
		if err != nil {
			return source
		}
		return abs
	}
}

// StartStack launches the slot's service stack using its manifest and
// port allocations, streaming output into the log pipeline and running
// discovery over the accumulated log.
func (m *Manager) StartStack(name string) error {
	slot, ok := m.Slot(name)
	if !ok {
		return slotz.SlotNotFound(name)
	}

	cfg, err := manifest.Load(slot.ClonePath)
	if err != nil {
		return err
	}

	if err := m.updateSlot(name, func(s *model.Slot) { s.Status = model.SlotStarting }); err != nil {
		return err
	}

	logPath := slot.StackLogPath()
	os.WriteFile(logPath, nil, 0o644)

	var accumulated strings.Builder
	var accMu sync.Mutex

	handle, err := stacksup.Start(slot.ClonePath, cfg, slot.PortAllocations, func(line string) {
		now := time.Now().UTC()
		entry := model.LogEntry{
			SlotName:  name,
			Source:    model.SourceStack,
			Severity:  logpipe.ClassifySeverity(line),
			Line:      line,
			Timestamp: now,
		}
		appendLine(logPath, line)
		m.ring.Push(entry)
		m.events.Publish(entry)
		m.activity.Record(name, line, now)

		accMu.Lock()
		accumulated.WriteString(line)
		accumulated.WriteString("\n")
		services := discovery.ParseLogContent(accumulated.String())
		accMu.Unlock()

		if services.DashboardURL != nil || len(services.ServiceURLs) > 0 {
			m.updateSlot(name, func(s *model.Slot) { s.Services = services })
		}
	})
	if err != nil {
		return err
	}

	m.stacksMu.Lock()
	m.stacks[name] = handle
	m.stacksMu.Unlock()

	return m.updateSlot(name, func(s *model.Slot) {
		s.Status = model.SlotRunning
		now := time.Now().UTC()
		s.StackStartedAt = &now
	})
}

// StopStack kills the slot's service stack process.
func (m *Manager) StopStack(name string) error {
	if err := m.updateSlot(name, func(s *model.Slot) { s.Status = model.SlotStopping }); err != nil {
		return err
	}

	m.stacksMu.Lock()
	handle := m.stacks[name]
	delete(m.stacks, name)
	m.stacksMu.Unlock()

	if handle != nil {
		if err := handle.Stop(); err != nil {
			m.log.Warn().Err(err).Str("slot", name).Msg("stack stop failed")
		}
	}

	return m.updateSlot(name, func(s *model.Slot) {
		s.Status = model.SlotReady
		s.StackStartedAt = nil
		s.Services = model.DiscoveredServices{ServiceURLs: map[string]string{}}
	})
}

// SpawnAgent launches a detached agent host process running the agent
// command in the slot's worktree, and starts tailing its output into
// the log pipeline.
func (m *Manager) SpawnAgent(ctx context.Context, name, prompt, allowedTools string, maxTurns int) error {
	slot, ok := m.Slot(name)
	if !ok {
		return slotz.SlotNotFound(name)
	}

	if err := m.updateSlot(name, func(s *model.Slot) { s.AgentStatus = model.AgentStarting }); err != nil {
		return err
	}

	command := buildAgentCommand(prompt, allowedTools, maxTurns)
	logPath := slot.AgentLogPath()

	if err := agentclient.Spawn(name, command, slot.ClonePath, logPath, m.slotsDir); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	if err := m.agents.StartSession(sessionID, name, prompt); err != nil {
		m.log.Warn().Err(err).Msg("record agent session")
	}

	os.WriteFile(logPath, nil, 0o644)
	tailer := logpipe.NewTailer(logPath, name, model.SourceAgent)

	m.tailersMu.Lock()
	if old := m.tailers[name]; old != nil {
		old.Stop()
	}
	m.tailers[name] = tailer
	m.tailersMu.Unlock()

	go tailer.Run(func(entry model.LogEntry) {
		m.ring.Push(entry)
		m.events.Publish(entry)
		m.activity.Record(name, entry.Line, entry.Timestamp)
		m.updateSlot(name, func(s *model.Slot) { s.LastAgentOutputAt = &entry.Timestamp })
	})

	return m.updateSlot(name, func(s *model.Slot) {
		s.AgentStatus = model.AgentActive
		now := time.Now().UTC()
		s.AgentStartedAt = &now
	})
}

func buildAgentCommand(prompt, allowedTools string, maxTurns int) []string {
	cmd := []string{"claude"}
	if prompt != "" {
		cmd = append(cmd, prompt)
	}
	if allowedTools != "" {
		cmd = append(cmd, "--allowed-tools", allowedTools)
	}
	if maxTurns > 0 {
		cmd = append(cmd, "--max-turns", fmt.Sprintf("%d", maxTurns))
	}
	return cmd
}

// StopAgent kills the slot's agent host process and stops tailing its log.
func (m *Manager) StopAgent(name string) error {
	m.tailersMu.Lock()
	if tailer := m.tailers[name]; tailer != nil {
		tailer.Stop()
		delete(m.tailers, name)
	}
	m.tailersMu.Unlock()

	if err := agentclient.Kill(name, m.slotsDir); err != nil {
		return err
	}

	return m.updateSlot(name, func(s *model.Slot) {
		s.AgentStatus = model.AgentStopped
		s.AgentStartedAt = nil
	})
}

// Rebase fetches and rebases the slot's branch onto origin/targetBranch,
// falling back to the slot's recorded default branch when targetBranch
// is empty.
func (m *Manager) Rebase(ctx context.Context, name, targetBranch string) error {
	slot, ok := m.Slot(name)
	if !ok {
		return slotz.SlotNotFound(name)
	}
	if targetBranch == "" {
		targetBranch = slot.DefaultBranch
	}
	if targetBranch == "" {
		targetBranch = "main"
	}
	if err := reposource.Fetch(ctx, slot.ClonePath); err != nil {
		return err
	}
	return reposource.Rebase(ctx, slot.ClonePath, targetBranch)
}

// Push pushes the slot's current branch, setting upstream tracking.
func (m *Manager) Push(ctx context.Context, name string) error {
	slot, ok := m.Slot(name)
	if !ok {
		return slotz.SlotNotFound(name)
	}
	return reposource.Push(ctx, slot.ClonePath, slot.Branch, true)
}

// DestroySlot tears down a slot's stack and agent processes, deletes
// its worktree, releases its ports, and removes it from the registry.
func (m *Manager) DestroySlot(name string) error {
	m.stacksMu.Lock()
	handle := m.stacks[name]
	delete(m.stacks, name)
	m.stacksMu.Unlock()
	if handle != nil {
		handle.Stop()
	}

	m.tailersMu.Lock()
	if tailer := m.tailers[name]; tailer != nil {
		tailer.Stop()
		delete(m.tailers, name)
	}
	m.tailersMu.Unlock()

	agentclient.Kill(name, m.slotsDir)

	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.findLocked(name)
	if err != nil {
		return err
	}

	if slot.ClonePath != "" {
		if _, statErr := os.Stat(slot.ClonePath); statErr == nil {
			os.RemoveAll(slot.ClonePath)
		}
	}

	for _, alloc := range slot.PortAllocations {
		m.ports.Release(alloc.Port)
	}

	filtered := make([]*model.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		if s.Name != name {
			filtered = append(filtered, s)
		}
	}
	m.slots = filtered

	return m.persistLocked()
}

func appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(line)
	f.WriteString("\n")
}

// Blueprints exposes the blueprint store for the HTTP API and CLI.
func (m *Manager) Blueprints() *blueprint.Store { return m.bps }

// blueprintSlotStagger is the pause applied between slots while applying
// a blueprint, giving each slot's clone/setup a moment to settle before
// the next one starts.
const blueprintSlotStagger = 2 * time.Second

// ApplyBlueprint resolves bp and creates every slot it describes,
// auto-starting the stack and/or spawning an agent per entry as
// directed. A slot's failure is reported via progress but does not
// abort the remaining slots; resolve errors are the only fatal case.
func (m *Manager) ApplyBlueprint(ctx context.Context, bp *model.Blueprint, progress func(slot string, err error)) error {
	resolved, err := blueprint.Resolve(bp)
	if err != nil {
		return err
	}

	for i, rs := range resolved {
		_, err := m.CreateSlot(ctx, rs.Name, rs.Source, rs.Branch, "")
		if err == nil && rs.AutoStartStack {
			err = m.StartStack(rs.Name)
		}
		if err == nil && rs.AutoSpawnAgent {
			err = m.SpawnAgent(ctx, rs.Name, rs.Prompt, rs.AllowedTools, rs.MaxTurns)
		}
		if progress != nil {
			progress(rs.Name, err)
		}
		if i < len(resolved)-1 {
			time.Sleep(blueprintSlotStagger)
		}
	}
	return nil
}

// BatchResult records the outcome of one slot within a batch operation.
type BatchResult struct {
	Slot  string `json:"slot"`
	Error string `json:"error,omitempty"`
}

// BatchRun is the progress/outcome record for one invocation of a batch
// operation ("start-all", "stop-all", ...), identified by a run id so a
// polling client can correlate repeated status checks.
type BatchRun struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`

	mu      sync.Mutex
	results []BatchResult
	done    bool
}

// Snapshot returns the batch's results so far and whether it's done.
func (r *BatchRun) Snapshot() ([]BatchResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BatchResult(nil), r.results...), r.done
}

func (r *BatchRun) record(result BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *BatchRun) markDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}

// batchStagger returns the pause applied between slots for a given batch
// operation: start-all staggers stack starts by 2s so they don't all
// compete for ports/CPU at once, spawn-agents-all staggers agent spawns
// by 500ms. Other operations run back-to-back.
func batchStagger(operation string) time.Duration {
	switch operation {
	case "start-all":
		return 2 * time.Second
	case "spawn-agents-all":
		return 500 * time.Millisecond
	default:
		return 0
	}
}

// RunBatch runs op sequentially over every slot's name, pausing between
// slots per batchStagger(operation), and recording a BatchResult per
// slot. Batches are not cancellable once started and run to completion;
// callers poll the returned *BatchRun for progress.
func (m *Manager) RunBatch(operation string, op func(name string) error) *BatchRun {
	run := &BatchRun{ID: uuid.NewString(), Operation: operation}

	m.runsMu.Lock()
	m.runs[run.ID] = run
	m.runsMu.Unlock()

	names := make([]string, 0)
	for _, s := range m.Slots() {
		names = append(names, s.Name)
	}

	stagger := batchStagger(operation)

	go func() {
		for i, name := range names {
			err := op(name)
			result := BatchResult{Slot: name}
			if err != nil {
				result.Error = err.Error()
			}
			run.record(result)
			if stagger > 0 && i < len(names)-1 {
				time.Sleep(stagger)
			}
		}
		run.markDone()
	}()

	return run
}

// GetBatchRun looks up a previously started batch run by id, for
// clients polling for progress.
func (m *Manager) GetBatchRun(id string) (*BatchRun, bool) {
	m.runsMu.Lock()
	defer m.runsMu.Unlock()
	run, ok := m.runs[id]
	return run, ok
}

