// Package config loads the coordinator's runtime configuration
// (~/.orc/config.toml) and the team roster (~/.orc/team.yaml). Both are
// optional: missing files yield working defaults, while present but
// malformed files are hard errors so typos never degrade silently.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"orc/pkg/protocol"
)

// Config is the daemon's runtime configuration, read from config.toml
// under the orc directory.
type Config struct {
	// PollIntervalMS is the per-worker snapshot poll interval.
	PollIntervalMS int `toml:"poll_interval_ms"`
	// SnapshotLines is how many rendered pane lines each poll captures.
	SnapshotLines int `toml:"snapshot_lines"`
	// BusyTimeoutSec flags a stuck_busy anomaly after this much
	// uninterrupted BUSY time.
	BusyTimeoutSec int `toml:"busy_timeout_sec"`
	// PushRetries bounds retries for a failed pane push.
	PushRetries int `toml:"push_retries"`
	// StateAware selects the state-aware delivery policy; false falls
	// back to always-push.
	StateAware bool `toml:"state_aware"`
	// ContextWarnPct adds a context_status warning at this fill level.
	ContextWarnPct int `toml:"context_warn_pct"`
	// AnomalyMaxPerWorker / AnomalyMaxTotal cap the anomaly history.
	AnomalyMaxPerWorker int `toml:"anomaly_max_per_worker"`
	AnomalyMaxTotal     int `toml:"anomaly_max_total"`
	// AnomalyRetentionHours drops anomaly records older than this.
	AnomalyRetentionHours int `toml:"anomaly_retention_hours"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollIntervalMS:        500,
		SnapshotLines:         50,
		BusyTimeoutSec:        600,
		PushRetries:           3,
		StateAware:            true,
		ContextWarnPct:        80,
		AnomalyMaxPerWorker:   50,
		AnomalyMaxTotal:       500,
		AnomalyRetentionHours: 24,
	}
}

// Load reads config.toml from dir, layering file values over Default.
// A missing file returns Default unchanged.
func Load(dir string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(dir, "config.toml")) //nolint:gosec // path derived from orc dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config.toml: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config.toml: %w", err)
	}
	return cfg, nil
}

// PollInterval returns PollIntervalMS as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// BusyTimeout returns BusyTimeoutSec as a duration.
func (c Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutSec) * time.Second
}

// AnomalyRetention returns AnomalyRetentionHours as a duration.
func (c Config) AnomalyRetention() time.Duration {
	return time.Duration(c.AnomalyRetentionHours) * time.Hour
}

// OrcDir returns the orc state directory, honoring ORC_DIR for tests.
func OrcDir() (string, error) {
	if dir := os.Getenv("ORC_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, protocol.OrcDir), nil
}
