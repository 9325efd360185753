// Package model holds the data types shared across slotforge's
// components: the persisted Slot record, port allocations, discovered
// service URLs, blueprints, and the small structs exchanged between the
// agent host and its clients.
package model

import "time"

type SlotStatus string

const (
	SlotProvisioning SlotStatus = "provisioning"
	SlotReady        SlotStatus = "ready"
	SlotStarting     SlotStatus = "starting"
	SlotRunning      SlotStatus = "running"
	SlotStopping     SlotStatus = "stopping"
	SlotError        SlotStatus = "error"
)

type AgentStatus string

const (
	AgentNone     AgentStatus = "none"
	AgentStarting AgentStatus = "starting"
	AgentActive   AgentStatus = "active"
	AgentBlocked  AgentStatus = "blocked"
	AgentStopped  AgentStatus = "stopped"
)

type PortAllocation struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

type DiscoveredServices struct {
	DashboardURL *string           `json:"dashboardUrl,omitempty"`
	ServiceURLs  map[string]string `json:"serviceUrls"`
}

// Slot is the unit the orchestrator manages: one worktree, one service
// stack, at most one agent. Field names are tagged camelCase because the
// state file and the HTTP API both speak the wire format the original
// implementation established.
type Slot struct {
	Name               string             `json:"name"`
	RepoPath           string             `json:"repoPath"`
	Branch             string             `json:"branch"`
	ClonePath          string             `json:"clonePath"`
	DefaultBranch      string             `json:"defaultBranch,omitempty"`
	Status             SlotStatus         `json:"status"`
	AgentStatus        AgentStatus        `json:"agentStatus"`
	PortAllocations    []PortAllocation   `json:"portAllocations"`
	Services           DiscoveredServices `json:"services"`
	CreatedAt         time.Time          `json:"createdAt"`
	StackStartedAt    *time.Time         `json:"stackStartedAt,omitempty"`
	AgentStartedAt    *time.Time         `json:"agentStartedAt,omitempty"`
	LastAgentOutputAt *time.Time         `json:"lastAgentOutputAt,omitempty"`
}

func NewSlot(name, repoPath, branch, clonePath string) *Slot {
	return &Slot{
		Name:            name,
		RepoPath:        repoPath,
		Branch:          branch,
		ClonePath:       clonePath,
		Status:          SlotProvisioning,
		AgentStatus:     AgentNone,
		PortAllocations: []PortAllocation{},
		Services:        DiscoveredServices{ServiceURLs: map[string]string{}},
		CreatedAt:       time.Now().UTC(),
	}
}

func (s *Slot) StackLogPath() string {
	return s.ClonePath + "/.slotforge-stack.log"
}

func (s *Slot) AgentLogPath() string {
	return s.ClonePath + "/.slotforge-agent.log"
}

// Blueprint is a reusable recipe for provisioning a set of slots.
type Blueprint struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Defaults    *BlueprintDefaults  `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Slots       []BlueprintSlotEntry `yaml:"slots" json:"slots"`
}

type BlueprintAgentConfig struct {
	PromptTemplate string `yaml:"prompt_template,omitempty" json:"promptTemplate,omitempty"`
	AllowedTools   string `yaml:"allowed_tools,omitempty" json:"allowedTools,omitempty"`
	MaxTurns       int    `yaml:"max_turns,omitempty" json:"maxTurns,omitempty"`
}

type BlueprintDefaults struct {
	Source         string                `yaml:"source,omitempty" json:"source,omitempty"`
	AutoStartStack *bool                 `yaml:"auto_start_stack,omitempty" json:"autoStartStack,omitempty"`
	AutoSpawnAgent *bool                 `yaml:"auto_spawn_agent,omitempty" json:"autoSpawnAgent,omitempty"`
	Agent          *BlueprintAgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`
}

type BlueprintSlotEntry struct {
	Name           string                `yaml:"name" json:"name"`
	Branch         string                `yaml:"branch,omitempty" json:"branch,omitempty"`
	Source         string                `yaml:"source,omitempty" json:"source,omitempty"`
	AutoStartStack *bool                 `yaml:"auto_start_stack,omitempty" json:"autoStartStack,omitempty"`
	AutoSpawnAgent *bool                 `yaml:"auto_spawn_agent,omitempty" json:"autoSpawnAgent,omitempty"`
	Agent          *BlueprintAgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// ResolvedBlueprintSlot is a blueprint entry merged with its blueprint's
// defaults: everything a caller needs to create one slot.
type ResolvedBlueprintSlot struct {
	Name           string
	Source         string
	Branch         string
	AutoStartStack bool
	AutoSpawnAgent bool
	Prompt         string
	AllowedTools   string
	MaxTurns       int
}

// OrchestratorConfig is the per-repository manifest
// (.slotforge-orchestrator.yaml) describing how to run its service stack.
type OrchestratorConfig struct {
	AppHost       string           `yaml:"apphost"`
	Setup         []string         `yaml:"setup"`
	PortOverrides map[string]int   `yaml:"port_overrides"`
}

// AgentHostInfo is the lease file a detached agent host process writes
// to disk so the daemon (which may have been restarted) can rediscover
// it and reconnect.
type AgentHostInfo struct {
	SlotName  string    `json:"slotName"`
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"startedAt"`
}

// LogSeverity classifies a LogEntry for the log pipeline's activity
// tracking and CLI rendering.
type LogSeverity string

const (
	SeverityInfo  LogSeverity = "info"
	SeverityWarn  LogSeverity = "warn"
	SeverityError LogSeverity = "error"
	SeverityDebug LogSeverity = "debug"
)

type LogSource string

const (
	SourceStack LogSource = "stack"
	SourceAgent LogSource = "agent"
)

type LogEntry struct {
	SlotName  string      `json:"slotName"`
	Source    LogSource   `json:"source"`
	Severity  LogSeverity `json:"severity"`
	Line      string      `json:"line"`
	Timestamp time.Time   `json:"timestamp"`
}

// SlotActivity is the rolling summary the log pipeline keeps per slot:
// recent event timestamps for sparkline rendering, plus whether the slot
// currently needs human attention.
type SlotActivity struct {
	SlotName        string      `json:"slotName"`
	RecentEvents    []time.Time `json:"-"`
	LastEventAt     time.Time   `json:"lastEventAt"`
	NeedsAttention  bool        `json:"needsAttention"`
	AttentionReason string      `json:"attentionReason,omitempty"`
}

// RepoCandidate is a repository the CLI can offer as a source when
// creating a slot, discovered by whatever upstream process feeds it in
// (local filesystem scan, `gh repo list`, ...). Discovery itself is out
// of scope; slotforge only consumes already-resolved candidates.
type RepoCandidate struct {
	Name      string `json:"name"`
	LocalPath string `json:"localPath,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

func (c RepoCandidate) SourceValue() string {
	if c.LocalPath != "" {
		return c.LocalPath
	}
	if c.RemoteURL != "" {
		return c.RemoteURL
	}
	return c.Name
}

func (c RepoCandidate) IsLocal() bool { return c.LocalPath != "" }
