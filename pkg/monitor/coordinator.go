// Package monitor implements the per-worker polling coordinator. Each
// registered worker gets its own goroutine that snapshots the worker's
// pane, classifies its state, records anomalies, and extracts wire
// commands from the worker's transcript. Loops are independent: stopping
// or losing one worker never affects the others.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"orc/pkg/anomaly"
	"orc/pkg/classify"
	"orc/pkg/protocol"
	"orc/pkg/router"
)

// SnapshotSource returns the last K lines of a worker's rendered terminal
// output. An empty snapshot means "not materialized yet", not an error.
type SnapshotSource interface {
	Get(ctx context.Context, workerID string) (string, error)
}

// TranscriptReader reads a worker's transcript incrementally. Cursors are
// monotonic; consumed entries are never re-returned.
type TranscriptReader interface {
	ReadNewEntries(workerID string, cursor int64) (entries []string, newCursor int64, err error)
}

// ContextReporter reports a worker's context usage for context_status.
type ContextReporter interface {
	Status(workerID string) (protocol.ContextStatus, error)
}

// EventSink receives diagnostic event rows; nil disables logging.
type EventSink interface {
	Log(ctx context.Context, evType, source, workerID, payload string)
}

// Config holds Coordinator configuration.
type Config struct {
	PollInterval    time.Duration // snapshot poll interval (default 500ms)
	BusyTimeout     time.Duration // sustained-BUSY anomaly threshold (default 10m)
	ExcerptLines    int           // snapshot lines kept in anomaly records (default 5)
	ControlDir      string        // transcripts dir watched by the control loop ("" disables fsnotify)
	ControlInterval time.Duration // control drop-box fallback poll interval (default 2s)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = 500 * time.Millisecond
	}
	if out.BusyTimeout == 0 {
		out.BusyTimeout = 10 * time.Minute
	}
	if out.ExcerptLines == 0 {
		out.ExcerptLines = 5
	}
	if out.ControlInterval == 0 {
		out.ControlInterval = 2 * time.Second
	}
	return out
}

// workerLoop tracks one running poll loop and its per-worker cursor state.
type workerLoop struct {
	cancel context.CancelFunc
	done   chan struct{}

	cursor      int64
	carry       string // transcript tail holding a possibly unterminated tag
	busySince   time.Time
	busyFlagged bool
}

// Coordinator runs one polling loop per registered worker.
type Coordinator struct {
	cfg         Config
	registry    *router.Registry
	router      *router.Router
	history     *anomaly.History
	snapshots   SnapshotSource
	transcripts TranscriptReader
	contexts    ContextReporter
	injector    router.InputInjector
	events      EventSink

	mu    sync.Mutex
	loops map[string]*workerLoop

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Coordinator. Call Start (or StartAll) to begin polling.
func New(cfg Config, reg *router.Registry, rt *router.Router, hist *anomaly.History,
	snaps SnapshotSource, transcripts TranscriptReader, contexts ContextReporter,
	injector router.InputInjector, events EventSink,
) *Coordinator {
	return &Coordinator{
		cfg:         cfg.withDefaults(),
		registry:    reg,
		router:      rt,
		history:     hist,
		snapshots:   snaps,
		transcripts: transcripts,
		contexts:    contexts,
		injector:    injector,
		events:      events,
		loops:       make(map[string]*workerLoop),
		nowFunc:     time.Now,
	}
}

// Start launches the poll loop for one registered worker. Starting an
// already-monitored worker is a no-op.
func (c *Coordinator) Start(ctx context.Context, workerID string) error {
	w, ok := c.registry.Lookup(workerID)
	if !ok {
		return &protocol.UnknownRecipientError{To: workerID}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(w.ID)
	if _, running := c.loops[key]; running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &workerLoop{cancel: cancel, done: make(chan struct{})}
	c.loops[key] = loop
	go c.run(loopCtx, w.ID, loop)
	return nil
}

// StartAll launches loops for every registered worker.
func (c *Coordinator) StartAll(ctx context.Context) {
	for _, w := range c.registry.List() {
		_ = c.Start(ctx, w.ID)
	}
}

// Stop cancels one worker's loop and waits for it to exit. Other loops are
// untouched.
func (c *Coordinator) Stop(workerID string) {
	c.mu.Lock()
	loop, ok := c.loops[strings.ToLower(workerID)]
	if ok {
		delete(c.loops, strings.ToLower(workerID))
	}
	c.mu.Unlock()

	if ok {
		loop.cancel()
		<-loop.done
	}
}

// StopAll cancels every loop and waits for them to exit.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	loops := c.loops
	c.loops = make(map[string]*workerLoop)
	c.mu.Unlock()

	for _, loop := range loops {
		loop.cancel()
	}
	for _, loop := range loops {
		<-loop.done
	}
}

// Monitoring reports whether a loop is currently running for the worker.
func (c *Coordinator) Monitoring(workerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loops[strings.ToLower(workerID)]
	return ok
}

// run is one worker's poll loop.
func (c *Coordinator) run(ctx context.Context, workerID string, loop *workerLoop) {
	defer close(loop.done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx, workerID, loop)
		}
	}
}

// poll performs one monitoring cycle: snapshot, classify, transition
// handling, then transcript command extraction and dispatch.
func (c *Coordinator) poll(ctx context.Context, workerID string, loop *workerLoop) {
	snapshot, err := c.snapshots.Get(ctx, workerID)
	if err != nil {
		// Transient: the pane may be mid-restart. Retry next tick.
		c.log(ctx, "snapshot_error", "monitor", workerID, fmt.Sprintf(`{"error":%q}`, err.Error()))
	} else if snapshot != "" {
		prev := c.registry.StateOf(workerID)
		state := classify.Classify(snapshot, prev)
		if state != prev {
			c.onTransition(ctx, workerID, prev, state, snapshot, loop)
		}
		c.checkStuckBusy(ctx, workerID, state, snapshot, loop)
	}

	entries, newCursor, err := c.transcripts.ReadNewEntries(workerID, loop.cursor)
	if err != nil {
		c.log(ctx, "transcript_error", "monitor", workerID, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	loop.cursor = newCursor
	if len(entries) == 0 {
		return
	}
	c.consumeTranscript(ctx, workerID, entries, loop)
}

// onTransition records the state change and fans it out to the router and
// the anomaly history.
func (c *Coordinator) onTransition(ctx context.Context, workerID string, old, state protocol.WorkerState, snapshot string, loop *workerLoop) {
	c.registry.SetState(workerID, state)
	c.log(ctx, "state_change", "monitor", workerID, fmt.Sprintf(`{"old":%q,"new":%q}`, old, state))

	switch state {
	case protocol.StateBusy:
		loop.busySince = c.nowFunc()
		loop.busyFlagged = false
	case protocol.StateError:
		c.history.Record(anomaly.Record{
			WorkerID: workerID,
			Kind:     anomaly.KindError,
			Excerpt:  excerpt(snapshot, c.cfg.ExcerptLines),
		})
		c.log(ctx, "anomaly", "monitor", workerID, `{"kind":"error"}`)
	case protocol.StateQuit:
		c.history.Record(anomaly.Record{
			WorkerID: workerID,
			Kind:     anomaly.KindQuit,
			Excerpt:  excerpt(snapshot, c.cfg.ExcerptLines),
		})
		c.log(ctx, "anomaly", "monitor", workerID, `{"kind":"quit"}`)
	}
	if old == protocol.StateBusy {
		loop.busySince = time.Time{}
		loop.busyFlagged = false
	}

	c.router.OnStateTransition(ctx, workerID, old, state)
}

// checkStuckBusy records a stuck_busy anomaly once per BUSY episode when
// the worker has been busy past the configured threshold.
func (c *Coordinator) checkStuckBusy(ctx context.Context, workerID string, state protocol.WorkerState, snapshot string, loop *workerLoop) {
	if state != protocol.StateBusy || loop.busyFlagged || loop.busySince.IsZero() {
		return
	}
	if c.nowFunc().Sub(loop.busySince) < c.cfg.BusyTimeout {
		return
	}
	loop.busyFlagged = true
	c.history.Record(anomaly.Record{
		WorkerID: workerID,
		Kind:     anomaly.KindStuckBusy,
		Excerpt:  excerpt(snapshot, c.cfg.ExcerptLines),
	})
	c.log(ctx, "anomaly", "monitor", workerID,
		fmt.Sprintf(`{"kind":"stuck_busy","busy_for":%q}`, c.nowFunc().Sub(loop.busySince)))
}

// excerpt returns the last n non-empty lines of a snapshot.
func excerpt(snapshot string, n int) string {
	lines := strings.Split(strings.TrimRight(snapshot, "\n"), "\n")
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append([]string{lines[i]}, kept...)
	}
	return strings.Join(kept, "\n")
}

func (c *Coordinator) log(ctx context.Context, evType, source, workerID, payload string) {
	if c.events != nil {
		c.events.Log(ctx, evType, source, workerID, payload)
	}
}
