package term

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orc/pkg/protocol"
)

// PaneContexts reads per-worker context usage from the pane state
// directory. Each worker owns panes/<id>/ and its tooling writes a
// context_lines file there (an integer, lines of context consumed) and
// optionally context_pct (0-100). A missing directory or file means the
// worker has not reported yet and yields a zero status, not an error.
type PaneContexts struct {
	Dir string // panes directory, e.g. ~/.orc/panes

	// WarnPct adds a warning once context_pct reaches this value.
	// Zero disables the check.
	WarnPct int
}

// NewPaneContexts creates a PaneContexts over dir with an 80% warning
// threshold.
func NewPaneContexts(dir string) *PaneContexts {
	return &PaneContexts{Dir: dir, WarnPct: 80}
}

// Status reports a worker's context usage for context_status replies.
func (p *PaneContexts) Status(workerID string) (protocol.ContextStatus, error) {
	status := protocol.ContextStatus{WorkerID: workerID}
	dir := filepath.Join(p.Dir, strings.ToLower(workerID))

	if lines, ok, err := readIntFile(filepath.Join(dir, "context_lines")); err != nil {
		return status, err
	} else if ok {
		status.LinesUsed = lines
	}

	pct, ok, err := readIntFile(filepath.Join(dir, "context_pct"))
	if err != nil {
		return status, err
	}
	if ok && p.WarnPct > 0 && pct >= p.WarnPct {
		status.Warnings = append(status.Warnings,
			fmt.Sprintf("context %d%% full, consider a handoff", pct))
	}
	return status, nil
}

// readIntFile parses a single-integer state file. Missing files report
// ok=false; a present but unparseable file is an error.
func readIntFile(path string) (int, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path derived from trusted panes dir
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read %s: %w", path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return n, true, nil
}
