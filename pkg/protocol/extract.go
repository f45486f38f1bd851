package protocol

import (
	"regexp"
	"strings"
)

// The orc-command wire tag comes in two dialects that carry the same
// logical content:
//
//	<orc-command name="send_message" from="A" to="B" title="T" priority="normal">BODY</orc-command>
//	<orc-command type="send_message"><from>A</from><to>B</to><title>T</title><content>BODY</content><priority>normal</priority></orc-command>
//
// Both feed the same canonical constructors. Matching is case-insensitive
// on the tag name and non-greedy across lines on content. Malformed tags
// (missing closing tag, unterminated quotes) simply fail to match and are
// skipped; unknown command names are ignored.
//
//nolint:gochecknoglobals // compile-once regex table, safe as package-level var
var (
	openTagRe      = regexp.MustCompile(`(?i)<orc-command\b([^>]*?)(/?)>`)
	closeTagRe     = regexp.MustCompile(`(?i)</orc-command>`)
	attrRe         = regexp.MustCompile(`(?i)([a-z_]+)\s*=\s*"([^"]*)"`)
	nestedFieldRes = map[string]*regexp.Regexp{
		"from":     regexp.MustCompile(`(?is)<from>(.*?)</from>`),
		"to":       regexp.MustCompile(`(?is)<to>(.*?)</to>`),
		"title":    regexp.MustCompile(`(?is)<title>(.*?)</title>`),
		"content":  regexp.MustCompile(`(?is)<content>(.*?)</content>`),
		"priority": regexp.MustCompile(`(?is)<priority>(.*?)</priority>`),
	}
)

// ExtractCommands scans raw worker output for embedded orc-command tags and
// returns the commands in the order they appear in the text. Tags are
// consumed left to right in a single pass: each open tag is classified as
// self-closed or paired from the tag itself, so a self-closed tag never
// swallows a later paired tag's content.
//
// Known limitation: tags quoted inside example text (fenced documentation a
// worker echoes back) are extracted like any other. Deliberately left as-is
// rather than guessed at; callers that care must pre-filter.
func ExtractCommands(text string) []Command {
	if text == "" || !strings.Contains(strings.ToLower(text), "<orc-command") {
		return nil
	}

	var cmds []Command
	pos := 0
	for pos < len(text) {
		m := openTagRe.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			break
		}
		attrs := parseAttrs(text[pos+m[2] : pos+m[3]])
		selfClosed := m[4] != m[5]
		next := pos + m[1]

		content := ""
		if !selfClosed {
			c := closeTagRe.FindStringIndex(text[next:])
			if c == nil {
				// Unterminated: skip the open tag, keep scanning.
				pos = next
				continue
			}
			content = text[next : next+c[0]]
			next += c[1]
		}

		if cmd, ok := buildCommand(attrs, content); ok {
			cmds = append(cmds, cmd)
		}
		pos = next
	}
	return cmds
}

// parseAttrs extracts key="value" pairs from a tag's attribute text.
// Keys are lowercased; later duplicates win.
func parseAttrs(attrText string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(attrText, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}
	return attrs
}

// buildCommand dispatches to the dialect adapter indicated by the tag's
// attributes: `name` selects the attribute form, `type` the legacy nested
// form. A tag carrying neither (or an unknown command name) yields nothing.
func buildCommand(attrs map[string]string, content string) (Command, bool) {
	if name, ok := attrs["name"]; ok {
		return fromAttrForm(name, attrs, content)
	}
	if name, ok := attrs["type"]; ok {
		return fromNestedForm(name, content)
	}
	return Command{}, false
}

// fromAttrForm adapts the attribute dialect: fields live in tag attributes
// and the body is the element content.
func fromAttrForm(name string, attrs map[string]string, content string) (Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !KnownCommand(name) {
		return Command{}, false
	}
	if CommandType(name) == CmdSendMessage {
		return newSendCommand(
			strings.TrimSpace(attrs["from"]),
			strings.TrimSpace(attrs["to"]),
			strings.TrimSpace(attrs["title"]),
			strings.TrimSpace(content),
			attrs["priority"],
		)
	}
	return newNullaryCommand(CommandType(name)), true
}

// fromNestedForm adapts the legacy dialect: fields live in nested child
// elements and the body is the <content> element.
func fromNestedForm(name, content string) (Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !KnownCommand(name) {
		return Command{}, false
	}
	if CommandType(name) == CmdSendMessage {
		return newSendCommand(
			nestedField(content, "from"),
			nestedField(content, "to"),
			nestedField(content, "title"),
			nestedField(content, "content"),
			nestedField(content, "priority"),
		)
	}
	return newNullaryCommand(CommandType(name)), true
}

// nestedField returns the trimmed content of the named child element, or ""
// when the element is absent or unterminated.
func nestedField(content, field string) string {
	m := nestedFieldRes[field].FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
