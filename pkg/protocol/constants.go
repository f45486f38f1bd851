package protocol

// Directory and path constants used throughout orc.
const (
	// OrcDir is the user-level state directory (e.g., ~/.orc).
	OrcDir = ".orc"

	// TranscriptsDir holds per-worker transcript files under OrcDir.
	TranscriptsDir = "transcripts"

	// PanesDir holds per-worker pane state (context_pct files) under OrcDir.
	PanesDir = "panes"

	// ControlWorkerID is the pseudo-worker whose transcript is the CLI
	// drop-box: `orc send` appends command tags there and the monitor's
	// control loop consumes them.
	ControlWorkerID = "cli"
)
