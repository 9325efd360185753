// Package blueprint manages the reusable slot-provisioning recipes
// stored under the slots directory's blueprints/ subdirectory, and
// resolves a blueprint's defaults-plus-overrides into concrete,
// ready-to-create slot configurations.
package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotz"
)

type Store struct {
	dir string
}

func NewStore(slotsDirectory string) *Store {
	return &Store{dir: filepath.Join(slotsDirectory, "blueprints")}
}

// List returns the sorted names of all blueprints on disk.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, slotz.Wrap(slotz.KindState, s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

func (s *Store) Load(name string) (*model.Blueprint, error) {
	p := s.path(name)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, slotz.BlueprintNotFound(name)
	}
	if err != nil {
		return nil, slotz.Wrap(slotz.KindState, name, err)
	}

	var bp model.Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, slotz.Wrap(slotz.KindInvalidConfig, name, err)
	}
	return &bp, nil
}

// Save writes a new blueprint, failing if one with the same name
// already exists.
func (s *Store) Save(bp *model.Blueprint) error {
	if _, err := os.Stat(s.path(bp.Name)); err == nil {
		return slotz.BlueprintAlreadyExists(bp.Name)
	}
	return s.write(bp)
}

// Overwrite writes bp regardless of whether one already exists.
func (s *Store) Overwrite(bp *model.Blueprint) error {
	return s.write(bp)
}

func (s *Store) write(bp *model.Blueprint) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return slotz.Wrap(slotz.KindState, s.dir, err)
	}
	data, err := yaml.Marshal(bp)
	if err != nil {
		return slotz.Wrap(slotz.KindInvalidConfig, bp.Name, err)
	}
	if err := os.WriteFile(s.path(bp.Name), data, 0o644); err != nil {
		return slotz.Wrap(slotz.KindState, bp.Name, err)
	}
	return nil
}

func (s *Store) Delete(name string) error {
	p := s.path(name)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return slotz.BlueprintNotFound(name)
	}
	if err := os.Remove(p); err != nil {
		return slotz.Wrap(slotz.KindState, name, err)
	}
	return nil
}

// SnapshotFromSlots builds a blueprint capturing the current source and
// branch of each given slot, with no defaults and no agent config.
func SnapshotFromSlots(name, description string, slots []*model.Slot) *model.Blueprint {
	entries := make([]model.BlueprintSlotEntry, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, model.BlueprintSlotEntry{
			Name:   s.Name,
			Branch: s.Branch,
			Source: s.RepoPath,
		})
	}
	return &model.Blueprint{Name: name, Description: description, Slots: entries}
}

// Validate checks a blueprint for completeness, returning every problem
// found rather than stopping at the first.
func Validate(bp *model.Blueprint) []string {
	var errs []string

	if bp.Name == "" {
		errs = append(errs, "blueprint name is required")
	}
	if len(bp.Slots) == 0 {
		errs = append(errs, "blueprint must have at least one slot")
	}

	hasDefaultSource := bp.Defaults != nil && bp.Defaults.Source != ""

	for i, slot := range bp.Slots {
		if slot.Name == "" {
			errs = append(errs, fmt.Sprintf("slot %d has empty name", i))
		}
		if slot.Source == "" && !hasDefaultSource {
			errs = append(errs, fmt.Sprintf("slot '%s' has no source and no default source", slot.Name))
		}
	}
	return errs
}

// Interpolate substitutes {slot_name} and {branch} placeholders.
func Interpolate(template, slotName, branch string) string {
	s := strings.ReplaceAll(template, "{slot_name}", slotName)
	s = strings.ReplaceAll(s, "{branch}", branch)
	return s
}

// Resolve validates bp and merges its defaults into each slot entry,
// producing one fully-specified ResolvedBlueprintSlot per entry.
func Resolve(bp *model.Blueprint) ([]model.ResolvedBlueprintSlot, error) {
	if errs := Validate(bp); len(errs) > 0 {
		return nil, slotz.New(slotz.KindBlueprintValidation, bp.Name, strings.Join(errs, "; "))
	}

	var (
		defaultSource     string
		defaultAutoStart  bool
		defaultAutoSpawn  bool
		defaultAgent      *model.BlueprintAgentConfig
	)
	if bp.Defaults != nil {
		defaultSource = bp.Defaults.Source
		if bp.Defaults.AutoStartStack != nil {
			defaultAutoStart = *bp.Defaults.AutoStartStack
		}
		if bp.Defaults.AutoSpawnAgent != nil {
			defaultAutoSpawn = *bp.Defaults.AutoSpawnAgent
		}
		defaultAgent = bp.Defaults.Agent
	}

	resolved := make([]model.ResolvedBlueprintSlot, 0, len(bp.Slots))
	for _, slot := range bp.Slots {
		source := slot.Source
		if source == "" {
			source = defaultSource
		}
		if source == "" {
			return nil, slotz.New(slotz.KindBlueprintValidation, bp.Name,
				fmt.Sprintf("slot '%s' has no source", slot.Name))
		}

		branch := slot.Branch
		branchForInterpolation := branch
		if branchForInterpolation == "" {
			branchForInterpolation = "main"
		}

		autoStart := defaultAutoStart
		if slot.AutoStartStack != nil {
			autoStart = *slot.AutoStartStack
		}
		autoSpawn := defaultAutoSpawn
		if slot.AutoSpawnAgent != nil {
			autoSpawn = *slot.AutoSpawnAgent
		}

		agent := mergeAgentConfig(defaultAgent, slot.Agent)

		var prompt, allowedTools string
		var maxTurns int
		if agent != nil {
			if agent.PromptTemplate != "" {
				prompt = Interpolate(agent.PromptTemplate, slot.Name, branchForInterpolation)
			}
			allowedTools = agent.AllowedTools
			maxTurns = agent.MaxTurns
		}

		resolved = append(resolved, model.ResolvedBlueprintSlot{
			Name:           slot.Name,
			Source:         source,
			Branch:         branch,
			AutoStartStack: autoStart,
			AutoSpawnAgent: autoSpawn,
			Prompt:         prompt,
			AllowedTools:   allowedTools,
			MaxTurns:       maxTurns,
		})
	}
	return resolved, nil
}

func mergeAgentConfig(d, s *model.BlueprintAgentConfig) *model.BlueprintAgentConfig {
	if d == nil && s == nil {
		return nil
	}
	if d == nil {
		return s
	}
	if s == nil {
		return d
	}
	merged := &model.BlueprintAgentConfig{
		PromptTemplate: s.PromptTemplate,
		AllowedTools:   s.AllowedTools,
		MaxTurns:       s.MaxTurns,
	}
	if merged.PromptTemplate == "" {
		merged.PromptTemplate = d.PromptTemplate
	}
	if merged.AllowedTools == "" {
		merged.AllowedTools = d.AllowedTools
	}
	if merged.MaxTurns == 0 {
		merged.MaxTurns = d.MaxTurns
	}
	return merged
}
