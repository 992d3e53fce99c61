package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vatop.yaml")
	data := "dashboard:\n  name: " + name + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// Purpose: Verify an explicit config path must exist.
// Key aspects: No fall-through to defaults for -config.
// Upstream: go test execution.
// Downstream: loadDashboardConfig.
func TestLoadDashboardConfigExplicitMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, source, err := loadDashboardConfig(missing)
	if err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
	if source != missing {
		t.Fatalf("source = %q, want %q", source, missing)
	}
}

// Purpose: Verify the env candidate is honored when no flag is given.
// Key aspects: Uses t.Setenv for isolation.
// Upstream: go test execution.
// Downstream: loadDashboardConfig.
func TestLoadDashboardConfigEnvCandidate(t *testing.T) {
	path := writeConfigFile(t, "envcam")
	t.Setenv(envConfigPath, path)

	cfg, source, err := loadDashboardConfig("")
	if err != nil {
		t.Fatalf("loadDashboardConfig: %v", err)
	}
	if source != path {
		t.Fatalf("source = %q, want %q", source, path)
	}
	if cfg.Dashboard.Name != "envcam" {
		t.Fatalf("Dashboard.Name = %q, want envcam", cfg.Dashboard.Name)
	}
}

// Purpose: Verify the explicit flag wins over the env candidate.
// Key aspects: Both paths exist; the flag path must be chosen.
// Upstream: go test execution.
// Downstream: loadDashboardConfig.
func TestLoadDashboardConfigExplicitWins(t *testing.T) {
	envPath := writeConfigFile(t, "envcam")
	flagPath := writeConfigFile(t, "flagcam")
	t.Setenv(envConfigPath, envPath)

	cfg, source, err := loadDashboardConfig(flagPath)
	if err != nil {
		t.Fatalf("loadDashboardConfig: %v", err)
	}
	if source != flagPath {
		t.Fatalf("source = %q, want %q", source, flagPath)
	}
	if cfg.Dashboard.Name != "flagcam" {
		t.Fatalf("Dashboard.Name = %q, want flagcam", cfg.Dashboard.Name)
	}
}

// Purpose: Verify defaults apply when no candidate file exists.
// Key aspects: Runs from an empty directory so vatop.yaml is absent.
// Upstream: go test execution.
// Downstream: loadDashboardConfig.
func TestLoadDashboardConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv(envConfigPath, "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})

	cfg, source, err := loadDashboardConfig("")
	if err != nil {
		t.Fatalf("loadDashboardConfig: %v", err)
	}
	if source != "defaults" {
		t.Fatalf("source = %q, want defaults", source)
	}
	if cfg.Dashboard.Name == "" {
		t.Fatalf("defaults should carry a dashboard name")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
