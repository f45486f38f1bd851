package router

import (
	"sort"
	"strings"
	"sync"
	"time"

	"orc/pkg/protocol"
)

// Registry tracks registered workers. Ids are unique under case-insensitive
// comparison; the map is keyed by the folded id while the Worker keeps the
// id in its registered spelling. A single RWMutex guards the whole map;
// per-entry locking lives in the mailbox store, not here.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*protocol.Worker

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*protocol.Worker),
		nowFunc: time.Now,
	}
}

// fold normalizes a worker id for case-insensitive comparison.
func fold(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Register adds a worker. It fails fast with DuplicateWorkerError when the
// id is already taken under case-insensitive comparison — never a silent
// overwrite.
func (r *Registry) Register(id, displayName, paneTarget string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(id)
	if existing, ok := r.workers[key]; ok {
		return &protocol.DuplicateWorkerError{ID: id, Existing: existing.ID}
	}
	r.workers[key] = &protocol.Worker{
		ID:           strings.TrimSpace(id),
		DisplayName:  displayName,
		PaneTarget:   paneTarget,
		RegisteredAt: r.nowFunc(),
		State:        protocol.StateUnknown,
	}
	return nil
}

// Deregister removes a worker. Reports whether it existed.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(id)
	_, ok := r.workers[key]
	delete(r.workers, key)
	return ok
}

// Lookup resolves id case-insensitively and returns a copy of the worker.
func (r *Registry) Lookup(id string) (protocol.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[fold(id)]
	if !ok {
		return protocol.Worker{}, false
	}
	return *w, true
}

// List returns copies of all registered workers, sorted by id.
func (r *Registry) List() []protocol.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return fold(out[i].ID) < fold(out[j].ID) })
	return out
}

// SetState records a classified state for the worker and returns the state
// it replaced. Only the monitoring coordinator calls this.
func (r *Registry) SetState(id string, state protocol.WorkerState) (old protocol.WorkerState, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.workers[fold(id)]
	if !exists {
		return "", false
	}
	old = w.State
	if old != state {
		w.State = state
		w.StateChangedAt = r.nowFunc()
	}
	return old, true
}

// StateOf returns the worker's current state, or StateUnknown for an
// unregistered id.
func (r *Registry) StateOf(id string) protocol.WorkerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if w, ok := r.workers[fold(id)]; ok {
		return w.State
	}
	return protocol.StateUnknown
}
