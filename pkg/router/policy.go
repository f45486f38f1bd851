package router

import (
	"fmt"

	"orc/pkg/protocol"
)

// DeliveryPolicy decides whether and how to notify a recipient about a
// freshly queued message, given the recipient's current state. Selected at
// router construction time; there is no subclassing, just a strategy.
type DeliveryPolicy interface {
	// Notification returns the text to push and whether to push at all.
	Notification(state protocol.WorkerState, msg protocol.Message) (text string, push bool)
}

// BasicPolicy always pushes a standard notification, regardless of the
// recipient's state. Useful when state classification is unavailable.
type BasicPolicy struct{}

// Notification implements DeliveryPolicy.
func (BasicPolicy) Notification(_ protocol.WorkerState, msg protocol.Message) (string, bool) {
	return standardNotification(msg), true
}

// StateAwarePolicy adapts delivery to the recipient's state: a standard
// push when IDLE, a non-interrupting push when WRITING or BUSY, and no
// push at all for ERROR/QUIT (the message stays queued).
type StateAwarePolicy struct{}

// Notification implements DeliveryPolicy.
func (StateAwarePolicy) Notification(state protocol.WorkerState, msg protocol.Message) (string, bool) {
	switch state {
	case protocol.StateError, protocol.StateQuit:
		return "", false
	case protocol.StateWriting, protocol.StateBusy:
		return deferredNotification(msg), true
	default:
		return standardNotification(msg), true
	}
}

// standardNotification is the immediate "new message" push for an idle
// recipient.
func standardNotification(msg protocol.Message) string {
	return fmt.Sprintf("[ORC-MAIL] %sNew message from %s%s — run mailbox_check to read it.",
		urgentPrefix(msg), msg.From, titleClause(msg))
}

// deferredNotification is the non-interrupting phrasing used when the
// recipient is mid-task.
func deferredNotification(msg protocol.Message) string {
	return fmt.Sprintf("[ORC-MAIL] %sMessage from %s%s queued — check it when convenient.",
		urgentPrefix(msg), msg.From, titleClause(msg))
}

// reminderNotification nudges an idle worker holding undelivered backlog.
func reminderNotification(pending int) string {
	plural := ""
	if pending != 1 {
		plural = "s"
	}
	return fmt.Sprintf("[ORC-MAIL] Reminder: %d unread message%s waiting — run mailbox_check.", pending, plural)
}

func urgentPrefix(msg protocol.Message) string {
	if msg.Priority == protocol.PriorityHigh {
		return "URGENT: "
	}
	return ""
}

func titleClause(msg protocol.Message) string {
	if msg.Title == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", msg.Title)
}
