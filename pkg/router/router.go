// Package router owns the per-worker mailboxes and the state-aware message
// delivery machinery. It is the only component that creates Messages or
// mutates mailbox contents; everything else talks to it through the
// exported operations.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orc/pkg/protocol"
)

// InputInjector delivers literal text into a worker's interactive input
// stream. Production impl drives tmux; tests substitute a fake.
type InputInjector interface {
	Push(ctx context.Context, workerID, text string) error
}

// EventSink receives diagnostic event rows. The SQLite event log implements
// it; a nil sink disables logging.
type EventSink interface {
	Log(ctx context.Context, evType, source, workerID, payload string)
}

// Config holds Router configuration.
type Config struct {
	PushRetries int // attempts per notification push (default 3)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PushRetries == 0 {
		out.PushRetries = 3
	}
	return out
}

// Router routes send_message commands into mailboxes and pushes
// notifications according to the configured DeliveryPolicy.
type Router struct {
	cfg      Config
	registry *Registry
	boxes    *MailboxStore
	policy   DeliveryPolicy
	injector InputInjector
	events   EventSink

	// nowFunc/idFunc allow tests to control time and message ids.
	nowFunc func() time.Time
	idFunc  func() string
}

// New creates a Router around an existing registry. The policy is injected
// at construction; pass StateAwarePolicy{} for state-aware delivery or
// BasicPolicy{} to always push.
func New(cfg Config, registry *Registry, policy DeliveryPolicy, injector InputInjector, events EventSink) *Router {
	return &Router{
		cfg:      cfg.withDefaults(),
		registry: registry,
		boxes:    NewMailboxStore(),
		policy:   policy,
		injector: injector,
		events:   events,
		nowFunc:  time.Now,
		idFunc:   func() string { return uuid.NewString() },
	}
}

// Registry returns the worker registry the router resolves recipients in.
func (r *Router) Registry() *Registry { return r.registry }

// Register adds a worker to the registry. Duplicate ids (case-insensitive)
// fail fast with DuplicateWorkerError.
func (r *Router) Register(id, displayName, paneTarget string) error {
	return r.registry.Register(id, displayName, paneTarget)
}

// Deregister removes a worker and drops its mailbox.
func (r *Router) Deregister(id string) bool {
	ok := r.registry.Deregister(id)
	r.boxes.remove(id)
	return ok
}

// Delivery describes the outcome for one recipient of a routed message.
type Delivery struct {
	WorkerID  string
	MessageID string
	Pushed    bool  // notification reached the worker's input
	Err       error // non-nil on DeliveryError (message stays queued)
}

// RouteResult summarizes a Route call across all resolved recipients.
type RouteResult struct {
	Deliveries []Delivery
}

// Route resolves cmd.To case-insensitively, queues one Message per
// recipient, and applies the delivery policy. A non-broadcast recipient
// that matches no registered worker raises UnknownRecipientError.
// Broadcast ("*") fans out to all registered workers but excludes ERROR and
// QUIT recipients from distribution entirely — they do not even receive
// the queued copy.
func (r *Router) Route(ctx context.Context, cmd protocol.SendPayload) (RouteResult, error) {
	var recipients []protocol.Worker

	if cmd.To == protocol.Broadcast {
		for _, w := range r.registry.List() {
			if !w.State.Pushable() {
				continue
			}
			recipients = append(recipients, w)
		}
	} else {
		w, ok := r.registry.Lookup(cmd.To)
		if !ok {
			return RouteResult{}, &protocol.UnknownRecipientError{To: cmd.To}
		}
		recipients = append(recipients, w)
	}

	result := RouteResult{Deliveries: make([]Delivery, 0, len(recipients))}
	for _, w := range recipients {
		result.Deliveries = append(result.Deliveries, r.deliver(ctx, w, cmd))
	}
	return result, nil
}

// deliver queues the message for one recipient and pushes the notification
// the policy asks for. The mailbox lock is held only for queue mutation;
// the push happens outside it so a slow pane cannot block a concurrent
// drain.
func (r *Router) deliver(ctx context.Context, w protocol.Worker, cmd protocol.SendPayload) Delivery {
	msg := protocol.Message{
		ID:        r.idFunc(),
		From:      cmd.From,
		To:        w.ID,
		Title:     cmd.Title,
		Body:      cmd.Body,
		Priority:  cmd.Priority,
		CreatedAt: r.nowFunc(),
	}
	box := r.boxes.box(w.ID)
	box.append(msg)
	r.log(ctx, "message_queued", cmd.From, w.ID,
		fmt.Sprintf(`{"message_id":%q,"priority":%q}`, msg.ID, msg.Priority))

	d := Delivery{WorkerID: w.ID, MessageID: msg.ID}

	text, push := r.policy.Notification(r.registry.StateOf(w.ID), msg)
	if !push {
		return d
	}

	if err := r.pushWithRetry(ctx, w.ID, text); err != nil {
		d.Err = &protocol.DeliveryError{
			WorkerID:  w.ID,
			MessageID: msg.ID,
			Attempts:  r.cfg.PushRetries,
			Err:       err,
		}
		r.log(ctx, "push_failed", "router", w.ID, fmt.Sprintf(`{"message_id":%q}`, msg.ID))
		return d
	}

	box.markDelivered(msg.ID)
	d.Pushed = true
	r.log(ctx, "message_pushed", "router", w.ID, fmt.Sprintf(`{"message_id":%q}`, msg.ID))
	return d
}

// Drain atomically returns and clears the worker's mailbox, resetting the
// reminder flag. Unknown workers raise UnknownRecipientError.
func (r *Router) Drain(workerID string) ([]protocol.Message, error) {
	if _, ok := r.registry.Lookup(workerID); !ok {
		return nil, &protocol.UnknownRecipientError{To: workerID}
	}
	return r.boxes.box(workerID).drain(), nil
}

// Pending returns the number of messages queued for the worker.
func (r *Router) Pending(workerID string) int {
	return r.boxes.Pending(workerID)
}

// OnStateTransition is called by the monitoring coordinator on every
// detected state change. A transition into IDLE while the mailbox holds
// undelivered messages fires exactly one reminder per backlog episode.
func (r *Router) OnStateTransition(ctx context.Context, workerID string, _, newState protocol.WorkerState) {
	if newState != protocol.StateIdle {
		return
	}
	pending, ok := r.boxes.box(workerID).claimReminder()
	if !ok {
		return
	}
	if err := r.pushWithRetry(ctx, workerID, reminderNotification(pending)); err != nil {
		r.log(ctx, "reminder_failed", "router", workerID, fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}
	r.log(ctx, "reminder_pushed", "router", workerID, fmt.Sprintf(`{"pending":%d}`, pending))
}

// pushWithRetry attempts the injector push up to cfg.PushRetries times.
func (r *Router) pushWithRetry(ctx context.Context, workerID, text string) error {
	var lastErr error
	for attempt := 0; attempt < r.cfg.PushRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = r.injector.Push(ctx, workerID, text); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (r *Router) log(ctx context.Context, evType, source, workerID, payload string) {
	if r.events != nil {
		r.events.Log(ctx, evType, source, workerID, payload)
	}
}
