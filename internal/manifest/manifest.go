// Package manifest loads the per-repository .slotforge-orchestrator.yaml
// file that tells the Service-Stack Supervisor how to run a slot's
// service stack.
package manifest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotz"
)

const FileName = ".slotforge-orchestrator.yaml"

// Load reads and validates the manifest at repoPath/.slotforge-orchestrator.yaml.
func Load(repoPath string) (*model.OrchestratorConfig, error) {
	configPath := filepath.Join(repoPath, FileName)

	contents, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, slotz.New(slotz.KindConfigNotFound, configPath, "")
	}
	if err != nil {
		return nil, slotz.Wrap(slotz.KindInvalidConfig, configPath, err)
	}

	var cfg model.OrchestratorConfig
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, slotz.Wrap(slotz.KindInvalidConfig, configPath, err)
	}
	if cfg.AppHost == "" {
		return nil, slotz.New(slotz.KindInvalidConfig, configPath, "apphost field is required")
	}
	if cfg.PortOverrides == nil {
		cfg.PortOverrides = map[string]int{}
	}
	return &cfg, nil
}
