package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"orc/pkg/anomaly"
	"orc/pkg/config"
	"orc/pkg/eventlog"
	"orc/pkg/monitor"
	"orc/pkg/protocol"
	"orc/pkg/router"
	"orc/pkg/term"

	"github.com/spf13/cobra"
)

// DaemonSpawner abstracts spawning the daemon subprocess for testability.
type DaemonSpawner interface {
	SpawnDaemon() (pid int, err error)
}

// ExecDaemonSpawner forks a child process running `orc start --foreground`.
type ExecDaemonSpawner struct{}

// SpawnDaemon re-executes the current binary with --foreground.
func (e *ExecDaemonSpawner) SpawnDaemon() (int, error) {
	child := exec.CommandContext(context.Background(), os.Args[0], "start", "--foreground") //nolint:gosec // intentionally re-executing self
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("spawn daemon: %w", err)
	}
	return child.Process.Pid, nil
}

// pidPollTimeout is the maximum time to wait for the daemon PID file.
const pidPollTimeout = 5 * time.Second

// pidPollInterval is how often to check for the PID file.
const pidPollInterval = 50 * time.Millisecond

// newStartCmd creates the "orc start" subcommand.
func newStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the orc coordinator daemon",
		Long:  "Starts the coordinator: one monitoring loop per worker in team.yaml,\nthe mail router, and the control drop-box watcher.",
		RunE: func(cmd *cobra.Command, args []string) error {
			orcDir, err := config.OrcDir()
			if err != nil {
				return err
			}
			if err := bootstrapOrcDir(orcDir); err != nil {
				return fmt.Errorf("bootstrap orc dir: %w", err)
			}

			pidPath, err := DefaultPIDPath()
			if err != nil {
				return err
			}

			status, pid, err := DaemonStatus(pidPath)
			if err != nil {
				return err
			}
			switch status {
			case StatusRunning:
				fmt.Fprintf(cmd.OutOrStdout(), "coordinator already running (PID %d)\n", pid)
				return nil
			case StatusStale:
				_ = RemovePIDFile(pidPath)
			case StatusStopped:
			}

			if foreground {
				return runForeground(cmd, orcDir, pidPath)
			}
			return runFullStart(cmd.OutOrStdout(), pidPath, &ExecDaemonSpawner{}, pidPollTimeout)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run the coordinator in the foreground instead of daemonizing")

	return cmd
}

// runFullStart spawns the daemon subprocess and waits for its PID file.
func runFullStart(w io.Writer, pidPath string, spawner DaemonSpawner, timeout time.Duration) error {
	pid, err := spawner.SpawnDaemon()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, statErr := os.Stat(pidPath); statErr == nil {
			break
		}
		time.Sleep(pidPollInterval)
	}
	if _, err := os.Stat(pidPath); err != nil {
		return fmt.Errorf("coordinator not ready at %s: %w", pidPath, err)
	}

	fmt.Fprintf(w, "orc coordinator started (PID %d)\n", pid)
	return nil
}

// runForeground runs the coordinator in the foreground until SIGTERM.
func runForeground(cmd *cobra.Command, orcDir, pidPath string) error {
	cfg, err := config.Load(orcDir)
	if err != nil {
		return err
	}
	team, err := config.LoadTeam(orcDir)
	if err != nil {
		return err
	}

	if err := WritePIDFile(pidPath, os.Getpid()); err != nil {
		return err
	}
	shutdownCtx, cleanup := SetupSignalHandler(cmd.Context(), pidPath)
	defer cleanup()

	coord, events, err := buildCoordinator(cfg, team, orcDir)
	if err != nil {
		return err
	}
	defer func() { _ = events.Close() }()

	fmt.Fprintf(cmd.OutOrStdout(), "coordinator running (PID %d, workers=%d)\n", os.Getpid(), len(team.Workers))

	coord.StartAll(shutdownCtx)
	coord.RunControl(shutdownCtx)
	coord.StopAll()

	fmt.Fprintln(cmd.OutOrStdout(), "coordinator stopped")
	return nil
}

// buildCoordinator constructs the coordinator with all production
// dependencies. The caller owns the returned event log and must close it.
func buildCoordinator(cfg config.Config, team config.Team, orcDir string) (*monitor.Coordinator, *eventlog.Log, error) {
	events, err := eventlog.Open(filepath.Join(orcDir, "orc.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}

	panes := make(term.PaneMap, len(team.Workers))
	for _, m := range team.Workers {
		panes[strings.ToLower(m.ID)] = m.PaneTarget
	}

	snapshots := term.NewPaneSnapshots(panes)
	snapshots.Lines = cfg.SnapshotLines
	injector := term.NewPaneInjector(panes)
	transcripts := term.NewFileTranscripts(filepath.Join(orcDir, protocol.TranscriptsDir))
	contexts := term.NewPaneContexts(filepath.Join(orcDir, protocol.PanesDir))
	contexts.WarnPct = cfg.ContextWarnPct

	registry := router.NewRegistry()
	var policy router.DeliveryPolicy = &router.BasicPolicy{}
	if cfg.StateAware {
		policy = &router.StateAwarePolicy{}
	}
	rt := router.New(router.Config{PushRetries: cfg.PushRetries}, registry, policy, injector, events)

	for _, m := range team.Workers {
		id := strings.ToLower(strings.TrimSpace(m.ID))
		if err := rt.Register(id, m.DisplayName, m.PaneTarget); err != nil {
			_ = events.Close()
			return nil, nil, fmt.Errorf("register worker %q: %w", m.ID, err)
		}
	}

	history := anomaly.NewHistory(anomaly.Config{
		MaxPerWorker: cfg.AnomalyMaxPerWorker,
		MaxTotal:     cfg.AnomalyMaxTotal,
		Retention:    cfg.AnomalyRetention(),
	})

	coord := monitor.New(monitor.Config{
		PollInterval: cfg.PollInterval(),
		BusyTimeout:  cfg.BusyTimeout(),
		ControlDir:   filepath.Join(orcDir, protocol.TranscriptsDir),
	}, registry, rt, history, snapshots, transcripts, contexts, injector, events)

	return coord, events, nil
}

// bootstrapOrcDir creates the orc state directory with 0700 permissions.
// Idempotent.
func bootstrapOrcDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create orc dir %s: %w", dir, err)
	}
	return nil
}
