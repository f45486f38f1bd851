package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.BusyTimeout() != 10*time.Minute {
		t.Errorf("BusyTimeout = %v", cfg.BusyTimeout())
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), `
poll_interval_ms = 100
state_aware = false
anomaly_max_total = 9
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollIntervalMS != 100 {
		t.Errorf("PollIntervalMS = %d, want 100", cfg.PollIntervalMS)
	}
	if cfg.StateAware {
		t.Error("StateAware should be overridden to false")
	}
	if cfg.AnomalyMaxTotal != 9 {
		t.Errorf("AnomalyMaxTotal = %d, want 9", cfg.AnomalyMaxTotal)
	}
	// Untouched keys keep their defaults.
	if cfg.PushRetries != Default().PushRetries {
		t.Errorf("PushRetries = %d, want default", cfg.PushRetries)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), "poll_interval_ms = [not an int")

	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadTeam(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "team.yaml"), `
workers:
  - id: alice
    display_name: Alice the Architect
    pane_target: orc:0.1
  - id: bob
    pane_target: orc:0.2
`)

	team, err := LoadTeam(dir)
	if err != nil {
		t.Fatalf("LoadTeam: %v", err)
	}
	if len(team.Workers) != 2 {
		t.Fatalf("workers = %d, want 2", len(team.Workers))
	}
	if team.Workers[0].DisplayName != "Alice the Architect" {
		t.Errorf("display_name = %q", team.Workers[0].DisplayName)
	}
	if team.Workers[1].PaneTarget != "orc:0.2" {
		t.Errorf("pane_target = %q", team.Workers[1].PaneTarget)
	}
}

func TestLoadTeamMissingFileIsEmptyRoster(t *testing.T) {
	t.Parallel()

	team, err := LoadTeam(t.TempDir())
	if err != nil {
		t.Fatalf("LoadTeam: %v", err)
	}
	if len(team.Workers) != 0 {
		t.Errorf("workers = %d, want 0", len(team.Workers))
	}
}

func TestLoadTeamValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate_id_case_insensitive",
			yaml: "workers:\n  - id: alice\n    pane_target: a\n  - id: ALICE\n    pane_target: b\n",
		},
		{
			name: "missing_id",
			yaml: "workers:\n  - pane_target: a\n",
		},
		{
			name: "missing_pane_target",
			yaml: "workers:\n  - id: alice\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "team.yaml"), tt.yaml)
			if _, err := LoadTeam(dir); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOrcDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("ORC_DIR", "/tmp/orc-test")

	dir, err := OrcDir()
	if err != nil {
		t.Fatalf("OrcDir: %v", err)
	}
	if dir != "/tmp/orc-test" {
		t.Errorf("dir = %q", dir)
	}
}
