package term

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// defaultSnapshotLines is how many trailing rendered lines a snapshot
// captures when the caller does not say otherwise.
const defaultSnapshotLines = 50

// PaneSnapshots reads point-in-time captures of worker panes via
// `tmux capture-pane`. A worker whose pane is not yet materialized yields
// an empty snapshot, not an error — absence is "no evidence".
type PaneSnapshots struct {
	Runner   CmdRunner
	Resolver PaneResolver
	Lines    int // trailing lines per capture; 0 means defaultSnapshotLines
}

// NewPaneSnapshots creates a PaneSnapshots with the default ExecRunner.
func NewPaneSnapshots(resolver PaneResolver) *PaneSnapshots {
	return &PaneSnapshots{Runner: &ExecRunner{}, Resolver: resolver}
}

// Get returns the last K rendered lines of the worker's pane.
func (s *PaneSnapshots) Get(ctx context.Context, workerID string) (string, error) {
	target, ok := s.Resolver.PaneFor(workerID)
	if !ok {
		return "", nil
	}

	lines := s.Lines
	if lines == 0 {
		lines = defaultSnapshotLines
	}

	out, err := s.Runner.Run(ctx, "tmux", "capture-pane", "-p", "-t", target,
		"-S", "-"+strconv.Itoa(lines))
	if err != nil {
		// Pane or session not up yet. The monitor retries next tick.
		if strings.Contains(out, "can't find") || strings.Contains(out, "no server") {
			return "", nil
		}
		return "", fmt.Errorf("tmux capture-pane %s: %w", target, err)
	}
	return out, nil
}
