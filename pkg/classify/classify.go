// Package classify maps terminal snapshots to worker states using ordered
// pattern rules. Classification is a pure function of the snapshot text;
// the previous state is only returned when the snapshot carries no evidence,
// never used to override what the snapshot shows.
package classify

import (
	"regexp"
	"strings"

	"orc/pkg/protocol"
)

// errorBannerWindow is how many trailing rendered lines are searched for a
// failure banner. Older banners scroll out of the window and stop counting.
const errorBannerWindow = 5

// errorBanners are the recognized failure patterns. Matching is substring,
// case-sensitive, against the last errorBannerWindow lines only.
//
//nolint:gochecknoglobals // fixed pattern table, safe as package-level var
var errorBanners = []string{
	"Traceback (most recent call last)",
	"panic:",
	"Segmentation fault",
	"command not found",
	"FATAL",
	"API Error",
	"✗ Error",
	"Error:",
}

// busyLineRe matches a spinner line: a single arbitrary glyph at the start
// of the line, whitespace, then a recognized processing word with an
// optional ellipsis. The line-start anchor keeps processing words that
// appear mid-sentence in conversational text from reading as BUSY.
//
//nolint:gochecknoglobals // compile-once regex, safe as package-level var
var busyLineRe = regexp.MustCompile(`(?m)^[^\s][ \t]+(?:` +
	`Thinking|Pondering|Reasoning|Processing|Working|Computing|Crunching|` +
	`Brewing|Deliberating|Synthesizing|Analyzing|Searching|Reading|Writing|` +
	`Generating|Compiling|Vibing|Musing|Cogitating|Percolating` +
	`)(?:…|\.\.\.)?(?:\s|$)`)

// promptBoxRe matches the boxed input prompt that the worker's TUI renders
// when it is ready for input. The capture group holds whatever the user has
// typed into the prompt area.
//
//nolint:gochecknoglobals // compile-once regex, safe as package-level var
var promptBoxRe = regexp.MustCompile(`(?m)^\s*│\s*>\s?(.*?)\s*│\s*$`)

// barePromptRe matches the unboxed ❯ prompt variant.
//
//nolint:gochecknoglobals // compile-once regex, safe as package-level var
var barePromptRe = regexp.MustCompile(`(?m)^\s*❯\s?(.*?)\s*$`)

// shellPromptRe matches a bare shell prompt line — the only thing left on
// screen once the worker process has exited back to the login shell.
//
//nolint:gochecknoglobals // compile-once regex, safe as package-level var
var shellPromptRe = regexp.MustCompile(`[$%#]\s*$`)

// Classify maps a snapshot to a worker state. Rules are evaluated in fixed
// priority order, first match wins:
//
//  1. ERROR — failure banner within the last 5 rendered lines.
//  2. QUIT — no active process indicator; the pane shows a bare shell.
//  3. BUSY — anchored spinner line (see busyLineRe).
//  4. WRITING/IDLE — input prompt visible, split on typed content.
//
// If nothing matches, prev is returned: unknown input is not evidence of
// change. Debouncing is the caller's job, not the classifier's.
func Classify(snapshot string, prev protocol.WorkerState) protocol.WorkerState {
	if strings.TrimSpace(snapshot) == "" {
		return prev
	}

	if hasErrorBanner(snapshot) {
		return protocol.StateError
	}
	if isQuit(snapshot) {
		return protocol.StateQuit
	}
	if busyLineRe.MatchString(snapshot) {
		return protocol.StateBusy
	}
	if typed, ok := promptContent(snapshot); ok {
		if typed != "" {
			return protocol.StateWriting
		}
		return protocol.StateIdle
	}
	return prev
}

// hasErrorBanner reports whether any recognized failure banner appears in
// the last errorBannerWindow non-empty lines.
func hasErrorBanner(snapshot string) bool {
	lines := tailLines(snapshot, errorBannerWindow)
	for _, line := range lines {
		for _, banner := range errorBanners {
			if strings.Contains(line, banner) {
				return true
			}
		}
	}
	return false
}

// isQuit reports whether the worker process has exited: the last non-empty
// line looks like a bare shell prompt and no active process indicator (input
// prompt, spinner, interrupt hint) is visible anywhere in the snapshot.
func isQuit(snapshot string) bool {
	if hasActiveIndicator(snapshot) {
		return false
	}
	lines := tailLines(snapshot, 1)
	return len(lines) == 1 && shellPromptRe.MatchString(lines[0])
}

// hasActiveIndicator reports whether the snapshot shows any sign of a live
// worker TUI.
func hasActiveIndicator(snapshot string) bool {
	if strings.Contains(snapshot, "esc to interrupt") {
		return true
	}
	if busyLineRe.MatchString(snapshot) {
		return true
	}
	_, ok := promptContent(snapshot)
	return ok
}

// promptContent returns the text currently typed into the input prompt and
// whether a prompt is visible at all. The boxed form is preferred; the bare
// ❯ form is only consulted when no box is rendered. When the prompt appears
// on several lines the last occurrence wins (it is the live one; earlier
// ones are scrollback).
func promptContent(snapshot string) (typed string, ok bool) {
	if ms := promptBoxRe.FindAllStringSubmatch(snapshot, -1); len(ms) > 0 {
		return ms[len(ms)-1][1], true
	}
	if ms := barePromptRe.FindAllStringSubmatch(snapshot, -1); len(ms) > 0 {
		return ms[len(ms)-1][1], true
	}
	return "", false
}

// tailLines returns up to n trailing non-empty lines of s, oldest first.
func tailLines(s string, n int) []string {
	all := strings.Split(s, "\n")
	var out []string
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(all[i]) == "" {
			continue
		}
		out = append(out, all[i])
	}
	// Reverse into oldest-first order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
