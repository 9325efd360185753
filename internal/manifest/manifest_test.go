package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slotforge/slotforge/internal/slotz"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir())
	if slotz.KindOf(err) != slotz.KindConfigNotFound {
		t.Fatalf("KindOf(err) = %v, want KindConfigNotFound", slotz.KindOf(err))
	}
}

func TestLoadRequiresAppHost(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "setup:\n  - dotnet restore\n")

	_, err := Load(dir)
	if slotz.KindOf(err) != slotz.KindInvalidConfig {
		t.Fatalf("KindOf(err) = %v, want KindInvalidConfig", slotz.KindOf(err))
	}
}

func TestLoadDefaultsPortOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "apphost: src/AppHost\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PortOverrides == nil {
		t.Fatalf("PortOverrides should default to an empty map, got nil")
	}
	if len(cfg.PortOverrides) != 0 {
		t.Fatalf("PortOverrides = %v, want empty", cfg.PortOverrides)
	}
}

func TestLoadFullManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, `apphost: src/AppHost
setup:
  - dotnet restore
  - dotnet build
port_overrides:
  webfrontend: 5000
  apiservice: 5001
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppHost != "src/AppHost" {
		t.Fatalf("AppHost = %q", cfg.AppHost)
	}
	if len(cfg.Setup) != 2 {
		t.Fatalf("Setup = %v", cfg.Setup)
	}
	if cfg.PortOverrides["webfrontend"] != 5000 || cfg.PortOverrides["apiservice"] != 5001 {
		t.Fatalf("PortOverrides = %v", cfg.PortOverrides)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "apphost: [unterminated\n")

	_, err := Load(dir)
	if slotz.KindOf(err) != slotz.KindInvalidConfig {
		t.Fatalf("KindOf(err) = %v, want KindInvalidConfig", slotz.KindOf(err))
	}
}
