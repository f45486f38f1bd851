package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"orc/pkg/eventlog"
	"orc/pkg/protocol"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the "orc status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show coordinator and worker state",
		Long:  "Displays daemon liveness plus the last observed state of each worker,\nread from the event log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, err := DefaultPIDPath()
			if err != nil {
				return err
			}
			status, pid, err := DaemonStatus(pidPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			paint := newPainter(w)

			switch status {
			case StatusRunning:
				fmt.Fprintf(w, "coordinator: %s (PID %d)\n", paint.good("running"), pid)
			case StatusStale:
				fmt.Fprintf(w, "coordinator: %s (stale PID %d)\n", paint.bad("dead"), pid)
			case StatusStopped:
				fmt.Fprintf(w, "coordinator: %s\n", paint.dim("stopped"))
			}

			return printWorkerStates(cmd.Context(), w, paint)
		},
	}
}

// printWorkerStates lists each worker's last observed state. No event
// database yet just means nothing has been observed.
func printWorkerStates(ctx context.Context, w io.Writer, paint painter) error {
	log, err := eventlog.OpenReadOnly(eventlog.DefaultDBPath())
	if err != nil {
		fmt.Fprintln(w, "workers: no observations yet")
		return nil
	}
	defer func() { _ = log.Close() }()

	states, err := log.LatestStates(ctx)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Fprintln(w, "workers: no observations yet")
		return nil
	}

	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		state := stateFromPayload(states[id])
		fmt.Fprintf(w, "  %-16s %s\n", id, paint.state(state))
	}
	return nil
}

// stateFromPayload extracts the "new" state from a state_change payload.
func stateFromPayload(payload string) string {
	var change struct {
		New string `json:"new"`
	}
	if err := json.Unmarshal([]byte(payload), &change); err != nil || change.New == "" {
		return string(protocol.StateUnknown)
	}
	return change.New
}

// painter colorizes output when stdout is a terminal and passes text
// through unchanged otherwise.
type painter struct {
	color bool
}

func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	return painter{color: ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))}
}

var (
	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))  //nolint:gochecknoglobals // render styles are immutable
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))   //nolint:gochecknoglobals // render styles are immutable
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))  //nolint:gochecknoglobals // render styles are immutable
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) //nolint:gochecknoglobals // render styles are immutable
)

func (p painter) good(s string) string {
	if !p.color {
		return s
	}
	return goodStyle.Render(s)
}

func (p painter) bad(s string) string {
	if !p.color {
		return s
	}
	return badStyle.Render(s)
}

func (p painter) dim(s string) string {
	if !p.color {
		return s
	}
	return dimStyle.Render(s)
}

// state colors a worker state the way the dashboard does.
func (p painter) state(s string) string {
	if !p.color {
		return s
	}
	switch protocol.WorkerState(s) {
	case protocol.StateIdle:
		return goodStyle.Render(s)
	case protocol.StateBusy, protocol.StateWriting:
		return warnStyle.Render(s)
	case protocol.StateError, protocol.StateQuit:
		return badStyle.Render(s)
	default:
		return dimStyle.Render(s)
	}
}
