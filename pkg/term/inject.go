package term

import (
	"context"
	"fmt"
	"strings"
)

// PaneInjector pushes literal text into a worker's interactive input via
// `tmux set-buffer` + `paste-buffer`. Treating the text as a buffer paste
// rather than send-keys input prevents shell injection through tmux and
// survives special characters in message bodies.
type PaneInjector struct {
	Runner   CmdRunner
	Resolver PaneResolver
}

// NewPaneInjector creates a PaneInjector with the default ExecRunner.
func NewPaneInjector(resolver PaneResolver) *PaneInjector {
	return &PaneInjector{Runner: &ExecRunner{}, Resolver: resolver}
}

// Push delivers text into the worker's pane and submits it with Enter.
func (p *PaneInjector) Push(ctx context.Context, workerID, text string) error {
	target, ok := p.Resolver.PaneFor(workerID)
	if !ok {
		return fmt.Errorf("no pane registered for worker %s", workerID)
	}

	sanitized := sanitizeForTmux(text)

	if _, err := p.Runner.Run(ctx, "tmux", "set-buffer", "-b", "orc-push", sanitized); err != nil {
		return fmt.Errorf("tmux set-buffer: %w", err)
	}
	if _, err := p.Runner.Run(ctx, "tmux", "paste-buffer", "-b", "orc-push", "-t", target, "-d"); err != nil {
		return fmt.Errorf("tmux paste-buffer to %s: %w", target, err)
	}
	if _, err := p.Runner.Run(ctx, "tmux", "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("tmux send-keys Enter to %s: %w", target, err)
	}
	return nil
}

// sanitizeForTmux strips newlines so a pushed notification stays on one
// line in the recipient's input field.
func sanitizeForTmux(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return msg
}
