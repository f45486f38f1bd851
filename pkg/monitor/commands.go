package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orc/pkg/protocol"
)

// maxCarry bounds the unterminated tag text held between polls. A tag
// prefix that never closes is dropped once it exceeds this instead of
// re-accumulating forever.
const maxCarry = 64 * 1024

// consumeTranscript joins new transcript entries with any carried tail,
// extracts wire commands, and dispatches them in transcript order. A tag
// that is still being written (opened but not yet closed at the end of the
// delta) is carried over to the next poll instead of being lost.
func (c *Coordinator) consumeTranscript(ctx context.Context, workerID string, entries []string, loop *workerLoop) {
	text := loop.carry + strings.Join(entries, "\n") + "\n"
	loop.carry = unterminatedTail(text)
	if len(loop.carry) > maxCarry {
		loop.carry = ""
	}
	if loop.carry != "" {
		text = text[:len(text)-len(loop.carry)]
	}

	for _, cmd := range protocol.ExtractCommands(text) {
		cmd.By = workerID
		c.dispatch(ctx, cmd)
	}
}

// unterminatedTail returns the suffix of text starting at an orc-command
// open tag that has no closing yet, or "" when no tag is pending. A tag is
// closed only by </orc-command> or by the open tag itself being self-closed
// (its first > preceded by /); a /> inside a pending body does not count.
func unterminatedTail(text string) string {
	lower := strings.ToLower(text)
	idx := strings.LastIndex(lower, "<orc-command")
	if idx < 0 {
		return ""
	}
	rest := lower[idx:]
	if strings.Contains(rest, "</orc-command>") {
		return ""
	}
	if gt := strings.Index(rest, ">"); gt > 0 && rest[gt-1] == '/' {
		return ""
	}
	return text[idx:]
}

// dispatch routes one extracted command. Mailbox and registry replies go
// back into the issuing worker's input stream; the CLI drop-box has no
// pane, so its replies land in the event log only.
func (c *Coordinator) dispatch(ctx context.Context, cmd protocol.Command) {
	switch cmd.Type {
	case protocol.CmdSendMessage:
		c.dispatchSend(ctx, cmd)
	case protocol.CmdCheckMailbox:
		c.dispatchCheckMailbox(ctx, cmd)
	case protocol.CmdListAgents:
		c.reply(ctx, cmd.By, formatAgents(c.registry.List()))
	case protocol.CmdContextStatus:
		c.dispatchContextStatus(ctx, cmd)
	}
}

func (c *Coordinator) dispatchSend(ctx context.Context, cmd protocol.Command) {
	result, err := c.router.Route(ctx, *cmd.Send)
	if err != nil {
		// Routing errors go back to the command source, never silently
		// dropped.
		var unknown *protocol.UnknownRecipientError
		if errors.As(err, &unknown) {
			c.reply(ctx, cmd.By, fmt.Sprintf("[ORC-MAIL] Could not deliver: %s", unknown))
		}
		c.log(ctx, "route_error", "monitor", cmd.By, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	for _, d := range result.Deliveries {
		if d.Err != nil {
			c.log(ctx, "delivery_failed", "monitor", d.WorkerID, fmt.Sprintf(`{"message_id":%q}`, d.MessageID))
		}
	}
}

func (c *Coordinator) dispatchCheckMailbox(ctx context.Context, cmd protocol.Command) {
	msgs, err := c.router.Drain(cmd.By)
	if err != nil {
		c.log(ctx, "drain_error", "monitor", cmd.By, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	c.reply(ctx, cmd.By, formatMailbox(msgs))
}

func (c *Coordinator) dispatchContextStatus(ctx context.Context, cmd protocol.Command) {
	status, err := c.contexts.Status(cmd.By)
	if err != nil {
		c.log(ctx, "context_status_error", "monitor", cmd.By, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	c.reply(ctx, cmd.By, formatContextStatus(status))
}

// reply pushes text into the issuing worker's pane. The CLI drop-box
// pseudo-worker has no pane; its replies are logged instead.
func (c *Coordinator) reply(ctx context.Context, workerID, text string) {
	if strings.EqualFold(workerID, protocol.ControlWorkerID) {
		c.log(ctx, "control_reply", "monitor", workerID, fmt.Sprintf(`{"text":%q}`, text))
		return
	}
	if err := c.injector.Push(ctx, workerID, text); err != nil {
		c.log(ctx, "reply_failed", "monitor", workerID, fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
}

// formatMailbox renders drained messages as a single-line digest suitable
// for injection into a worker's input field.
func formatMailbox(msgs []protocol.Message) string {
	if len(msgs) == 0 {
		return "[ORC-MAIL] Mailbox empty."
	}
	parts := make([]string, 0, len(msgs))
	for i, m := range msgs {
		title := m.Title
		if title == "" {
			title = "(no title)"
		}
		parts = append(parts, fmt.Sprintf("%d) from %s [%s] %s: %s", i+1, m.From, m.Priority, title, m.Body))
	}
	return fmt.Sprintf("[ORC-MAIL] %d message(s): %s", len(msgs), strings.Join(parts, " | "))
}

// formatAgents renders the registry listing for list_agents.
func formatAgents(workers []protocol.Worker) string {
	if len(workers) == 0 {
		return "[ORC-MAIL] No agents registered."
	}
	parts := make([]string, 0, len(workers))
	for _, w := range workers {
		parts = append(parts, fmt.Sprintf("%s=%s", w.ID, w.State))
	}
	return "[ORC-MAIL] Agents: " + strings.Join(parts, ", ")
}

// formatContextStatus renders a context_status reply.
func formatContextStatus(s protocol.ContextStatus) string {
	out := fmt.Sprintf("[ORC-MAIL] Context: %d lines used", s.LinesUsed)
	if len(s.Warnings) > 0 {
		out += "; warnings: " + strings.Join(s.Warnings, "; ")
	}
	return out
}
