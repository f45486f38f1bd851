package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"orc/pkg/protocol"
)

// RunControl tails the CLI drop-box transcript and dispatches the commands
// `orc send` appends there. It wakes on filesystem events when cfg.ControlDir
// is set, with the ticker as a safety net; without a watchable directory it
// degrades to pure polling. Blocks until ctx is cancelled.
func (c *Coordinator) RunControl(ctx context.Context) {
	loop := &workerLoop{}

	watcher, err := fsnotify.NewWatcher()
	if err == nil && c.cfg.ControlDir != "" {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(c.cfg.ControlDir); err != nil {
			// Directory may not exist yet; fall back to polling alone.
			watcher = nil
		}
	} else {
		watcher = nil
	}

	ticker := time.NewTicker(c.cfg.ControlInterval)
	defer ticker.Stop()

	for {
		var events chan fsnotify.Event
		var errs chan error
		if watcher != nil {
			events = watcher.Events
			errs = watcher.Errors
		}

		select {
		case <-ctx.Done():
			return
		case <-events:
			c.pollControl(ctx, loop)
		case err := <-errs:
			if err != nil {
				c.log(ctx, "watcher_error", "monitor", protocol.ControlWorkerID,
					fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
		case <-ticker.C:
			c.pollControl(ctx, loop)
		}
	}
}

// pollControl reads and dispatches pending drop-box commands.
func (c *Coordinator) pollControl(ctx context.Context, loop *workerLoop) {
	entries, newCursor, err := c.transcripts.ReadNewEntries(protocol.ControlWorkerID, loop.cursor)
	if err != nil {
		c.log(ctx, "transcript_error", "monitor", protocol.ControlWorkerID,
			fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	loop.cursor = newCursor
	if len(entries) > 0 {
		c.consumeTranscript(ctx, protocol.ControlWorkerID, entries, loop)
	}
}
