// Package term adapts the coordinator's boundary contracts — snapshot
// source, input injector, transcript reader — onto tmux panes and
// per-worker transcript files. The concrete session/pane creation
// machinery lives elsewhere; this package only talks to panes that
// already exist.
package term

import (
	"context"
	"os/exec"
	"strings"
)

// CmdRunner abstracts command execution for testability.
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner implements CmdRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined output.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// PaneResolver maps a worker id to its tmux pane target. The registry-backed
// resolver is wired in at startup; tests use a map.
type PaneResolver interface {
	PaneFor(workerID string) (target string, ok bool)
}

// PaneMap is a fixed PaneResolver for tests and static team files.
type PaneMap map[string]string

// PaneFor implements PaneResolver.
func (m PaneMap) PaneFor(workerID string) (string, bool) {
	target, ok := m[workerID]
	return target, ok
}
