package protocol

import (
	"strings"
	"time"
)

// WorkerState represents the operational state of a monitored worker, as
// classified from its terminal snapshot.
type WorkerState string

// Worker state constants, in classification priority order.
const (
	StateError   WorkerState = "error"   // Failure banner visible in recent output.
	StateQuit    WorkerState = "quit"    // Worker process exited; pane shows a bare shell.
	StateBusy    WorkerState = "busy"    // Spinner line present; worker is processing.
	StateWriting WorkerState = "writing" // Input prompt visible with user-entered text.
	StateIdle    WorkerState = "idle"    // Input prompt visible and empty.
	StateUnknown WorkerState = "unknown" // No evidence yet (initial state).
)

// Pushable reports whether a notification may be injected into a worker in
// this state. ERROR and QUIT panes are inert.
func (s WorkerState) Pushable() bool {
	switch s {
	case StateError, StateQuit:
		return false
	default:
		return true
	}
}

// Priority is a message delivery priority.
type Priority string

// Priority constants.
const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps raw priority text to a Priority, defaulting to normal
// for empty or unrecognized input.
func ParsePriority(raw string) Priority {
	if strings.EqualFold(strings.TrimSpace(raw), string(PriorityHigh)) {
		return PriorityHigh
	}
	return PriorityNormal
}

// Worker holds registry metadata for one monitored worker. The monitor owns
// State/StateChangedAt; everything else is immutable after registration.
// The unread-reminder flag lives with the router's mailbox, not here.
type Worker struct {
	ID             string
	DisplayName    string
	PaneTarget     string // tmux pane for snapshots and input injection
	RegisteredAt   time.Time
	State          WorkerState
	StateChangedAt time.Time
}

// Broadcast is the recipient wildcard that fans a message out to every
// registered worker.
const Broadcast = "*"

// Message is one routed mailbox entry. Immutable after creation except for
// Delivered, which the router flips when the initial push succeeds.
type Message struct {
	ID        string
	From      string
	To        string
	Title     string
	Body      string
	Priority  Priority
	CreatedAt time.Time
	Delivered bool
}

// ContextStatus reports a worker's context usage, read from the per-worker
// pane state directory.
type ContextStatus struct {
	WorkerID  string   `json:"worker_id"`
	LinesUsed int      `json:"lines_used"`
	Warnings  []string `json:"warnings,omitempty"`
}
