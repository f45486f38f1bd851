// Package anomaly provides a bounded, in-memory store of notable worker
// state events (errors, stuck-busy periods). Two independent caps — a
// per-worker maximum and a global maximum — plus a time retention horizon
// bound memory regardless of run duration or worker count.
package anomaly

import (
	"sync"
	"time"
)

// Kind classifies an anomaly record.
type Kind string

// Anomaly kind constants.
const (
	KindError     Kind = "error"      // Worker entered the ERROR state.
	KindStuckBusy Kind = "stuck_busy" // Worker exceeded the sustained-BUSY threshold.
	KindQuit      Kind = "quit"       // Worker process exited.
)

// Record is one notable state event. Never mutated after creation.
type Record struct {
	WorkerID   string
	Kind       Kind
	DetectedAt time.Time
	Excerpt    string // trailing snapshot lines captured at detection time
}

// Config bounds the history. Zero values fall back to defaults.
type Config struct {
	MaxPerWorker int           // per-worker record cap (default 50)
	MaxTotal     int           // global record cap (default 500)
	Retention    time.Duration // drop records older than this (default 24h)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxPerWorker == 0 {
		out.MaxPerWorker = 50
	}
	if out.MaxTotal == 0 {
		out.MaxTotal = 500
	}
	if out.Retention == 0 {
		out.Retention = 24 * time.Hour
	}
	return out
}

// History is the bounded anomaly store. Safe for concurrent use.
type History struct {
	cfg Config

	mu      sync.Mutex
	records []Record // oldest first

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewHistory creates a History with the given bounds.
func NewHistory(cfg Config) *History {
	return &History{
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// Record appends r, stamping DetectedAt if unset, then enforces the
// retention horizon and both caps, evicting oldest records first.
func (h *History) Record(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.DetectedAt.IsZero() {
		r.DetectedAt = h.nowFunc()
	}
	h.records = append(h.records, r)

	h.pruneExpired()
	h.enforcePerWorker(r.WorkerID)
	h.enforceGlobal()
}

// QueryOpts specifies filter criteria for querying anomaly records.
type QueryOpts struct {
	WorkerID string     // filter to one worker ("" = all)
	Kind     Kind       // filter to one kind ("" = all)
	Since    *time.Time // only records at or after this instant
}

// Query returns matching records, oldest first. The retention horizon is
// applied lazily here as well as on insert.
func (h *History) Query(opts QueryOpts) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pruneExpired()

	var out []Record
	for _, r := range h.records {
		if opts.WorkerID != "" && r.WorkerID != opts.WorkerID {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		if opts.Since != nil && r.DetectedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Len returns the current record count.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// pruneExpired drops records older than the retention horizon.
// Caller must hold h.mu.
func (h *History) pruneExpired() {
	horizon := h.nowFunc().Add(-h.cfg.Retention)
	i := 0
	for i < len(h.records) && h.records[i].DetectedAt.Before(horizon) {
		i++
	}
	if i > 0 {
		h.records = append(h.records[:0], h.records[i:]...)
	}
}

// enforcePerWorker evicts the oldest records of workerID until that worker
// is within its cap. Caller must hold h.mu.
func (h *History) enforcePerWorker(workerID string) {
	count := 0
	for _, r := range h.records {
		if r.WorkerID == workerID {
			count++
		}
	}
	excess := count - h.cfg.MaxPerWorker
	if excess <= 0 {
		return
	}
	kept := h.records[:0]
	for _, r := range h.records {
		if excess > 0 && r.WorkerID == workerID {
			excess--
			continue
		}
		kept = append(kept, r)
	}
	h.records = kept
}

// enforceGlobal evicts the oldest records until the global cap holds.
// Caller must hold h.mu.
func (h *History) enforceGlobal() {
	excess := len(h.records) - h.cfg.MaxTotal
	if excess > 0 {
		h.records = append(h.records[:0], h.records[excess:]...)
	}
}
