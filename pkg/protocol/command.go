package protocol

// CommandType discriminates the Command union.
type CommandType string

// Command type constants, matching the wire command names.
const (
	CmdSendMessage   CommandType = "send_message"
	CmdCheckMailbox  CommandType = "mailbox_check"
	CmdListAgents    CommandType = "list_agents"
	CmdContextStatus CommandType = "context_status"
)

// KnownCommand reports whether name is a recognized wire command name.
func KnownCommand(name string) bool {
	switch CommandType(name) {
	case CmdSendMessage, CmdCheckMailbox, CmdListAgents, CmdContextStatus:
		return true
	default:
		return false
	}
}

// SendPayload carries the fields of a send_message command.
type SendPayload struct {
	From     string
	To       string
	Title    string
	Body     string
	Priority Priority
}

// Command is a tagged union over the wire commands. Exactly one payload
// field is set, matching Type. By identifies the worker whose transcript
// produced the command; the extractor leaves it empty and the monitor
// fills it in before dispatch.
type Command struct {
	Type CommandType
	By   string
	Send *SendPayload // non-nil iff Type == CmdSendMessage
}

// newSendCommand is the canonical constructor both tag dialects feed into.
// It returns ok=false when any required field is empty; priority defaults
// to normal for absent or unrecognized values.
func newSendCommand(from, to, title, body, priority string) (Command, bool) {
	if from == "" || to == "" || body == "" {
		return Command{}, false
	}
	return Command{
		Type: CmdSendMessage,
		Send: &SendPayload{
			From:     from,
			To:       to,
			Title:    title,
			Body:     body,
			Priority: ParsePriority(priority),
		},
	}, true
}

// newNullaryCommand builds a command that carries no payload.
func newNullaryCommand(typ CommandType) Command {
	return Command{Type: typ}
}

// EncodeSend renders a send_message command in the attribute tag form.
// Double quotes in attribute values are dropped, since the wire grammar
// has no escape for them; bodies pass through untouched.
func EncodeSend(p SendPayload) string {
	attrs := `name="send_message" from="` + stripQuotes(p.From) + `" to="` + stripQuotes(p.To) + `"`
	if p.Title != "" {
		attrs += ` title="` + stripQuotes(p.Title) + `"`
	}
	attrs += ` priority="` + string(p.Priority) + `"`
	return "<orc-command " + attrs + ">" + p.Body + "</orc-command>"
}

func stripQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != '"' {
			out = append(out, r)
		}
	}
	return string(out)
}
