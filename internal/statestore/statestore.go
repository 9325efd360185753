// Package statestore persists the slot list to disk between daemon
// restarts. Saves are crash-safe: write to a temp file, then rename
// over the real one, so a daemon killed mid-write never leaves behind a
// truncated state.json.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotz"
)

const fileName = "state.json"

type Store struct {
	path string
}

func New(slotsDirectory string) *Store {
	return &Store{path: filepath.Join(slotsDirectory, fileName)}
}

// Load returns the persisted slot list, or an empty (non-nil) slice if
// no state file exists yet.
func (s *Store) Load() ([]*model.Slot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []*model.Slot{}, nil
	}
	if err != nil {
		return nil, slotz.Wrapf(slotz.KindState, "", "read state file: %s", err)
	}

	var slots []*model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, slotz.Wrapf(slotz.KindState, "", "decode state file: %s", err)
	}
	return slots, nil
}

// Save atomically overwrites the state file with slots.
func (s *Store) Save(slots []*model.Slot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return slotz.Wrapf(slotz.KindState, "", "create state dir: %s", err)
	}

	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return slotz.Wrapf(slotz.KindState, "", "encode state file: %s", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return slotz.Wrapf(slotz.KindState, "", "write temp state file: %s", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return slotz.Wrapf(slotz.KindState, "", "rename temp state file: %s", err)
	}
	return nil
}
