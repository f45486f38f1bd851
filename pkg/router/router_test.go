package router //nolint:testpackage // exercises unexported mailbox internals

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"orc/pkg/protocol"
)

// fakeInjector records pushed notifications and can fail on demand.
type fakeInjector struct {
	mu       sync.Mutex
	pushes   []pushRecord
	failures int // fail this many pushes before succeeding
}

type pushRecord struct {
	workerID string
	text     string
}

func (f *fakeInjector) Push(_ context.Context, workerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("pane unreachable")
	}
	f.pushes = append(f.pushes, pushRecord{workerID: workerID, text: text})
	return nil
}

func (f *fakeInjector) pushed() []pushRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pushRecord, len(f.pushes))
	copy(out, f.pushes)
	return out
}

func newTestRouter(t *testing.T, policy DeliveryPolicy) (*Router, *fakeInjector) {
	t.Helper()
	inj := &fakeInjector{}
	rt := New(Config{}, NewRegistry(), policy, inj, nil)
	return rt, inj
}

func mustRegister(t *testing.T, rt *Router, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := rt.Register(id, "", "pane:"+id); err != nil {
			t.Fatalf("Register(%q): %v", id, err)
		}
	}
}

func TestRouteCaseInsensitiveRecipient(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "Alice")

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "bob", To: "ALICE", Body: "hi",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(res.Deliveries) != 1 || !res.Deliveries[0].Pushed {
		t.Fatalf("deliveries = %+v, want one pushed", res.Deliveries)
	}
	if got := inj.pushed(); len(got) != 1 {
		t.Fatalf("pushes = %d, want 1", len(got))
	}
}

func TestRegisterDuplicateFailsFast(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "alice")

	err := rt.Register("ALICE", "", "pane:2")
	var dup *protocol.DuplicateWorkerError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateWorkerError", err)
	}
}

func TestRouteUnknownRecipient(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRouter(t, BasicPolicy{})

	_, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "a", To: "ghost", Body: "hello?",
	})
	var unknown *protocol.UnknownRecipientError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownRecipientError", err)
	}
}

func TestDrainIsFIFOAndClears(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "alice")

	for _, body := range []string{"first", "second", "third"} {
		if _, err := rt.Route(context.Background(), protocol.SendPayload{
			From: "bob", To: "alice", Body: body,
		}); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}

	msgs, err := rt.Drain("alice")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("drained %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Body != want {
			t.Errorf("msgs[%d].Body = %q, want %q", i, msgs[i].Body, want)
		}
	}

	again, err := rt.Drain("alice")
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d messages, want 0", len(again))
	}
}

func TestStateAwareDeferredDelivery(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, StateAwarePolicy{})
	mustRegister(t, rt, "worker")
	rt.Registry().SetState("worker", protocol.StateBusy)

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "master", To: "worker", Title: "Test", Body: "count files",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !res.Deliveries[0].Pushed {
		t.Fatal("busy delivery should still push the deferred notification")
	}

	pushes := inj.pushed()
	if len(pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(pushes))
	}
	if !strings.Contains(pushes[0].text, "check it when convenient") {
		t.Errorf("push text = %q, want deferred phrasing", pushes[0].text)
	}
	if rt.Pending("worker") != 1 {
		t.Errorf("pending = %d, want 1", rt.Pending("worker"))
	}

	// The message was delivered, so a later IDLE transition must not
	// trigger a reminder.
	rt.Registry().SetState("worker", protocol.StateIdle)
	rt.OnStateTransition(context.Background(), "worker", protocol.StateBusy, protocol.StateIdle)
	if got := inj.pushed(); len(got) != 1 {
		t.Errorf("pushes after idle = %d, want still 1", len(got))
	}
}

func TestStateAwareErrorRecipientGetsNoPush(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, StateAwarePolicy{})
	mustRegister(t, rt, "worker")
	rt.Registry().SetState("worker", protocol.StateError)

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "master", To: "worker", Body: "are you ok?",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Deliveries[0].Pushed {
		t.Error("error-state delivery must not push")
	}
	if len(inj.pushed()) != 0 {
		t.Errorf("pushes = %d, want 0", len(inj.pushed()))
	}
	// Message still queued for a later drain.
	if rt.Pending("worker") != 1 {
		t.Errorf("pending = %d, want 1", rt.Pending("worker"))
	}
}

func TestReminderAtMostOncePerBacklogEpisode(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, StateAwarePolicy{})
	mustRegister(t, rt, "worker")
	rt.Registry().SetState("worker", protocol.StateError)

	// Queue one message while the worker is unreachable: no push.
	if _, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "master", To: "worker", Body: "ping",
	}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(inj.pushed()) != 0 {
		t.Fatalf("pushes = %d, want 0 before any idle transition", len(inj.pushed()))
	}

	// Repeated IDLE<->BUSY flapping fires exactly one reminder.
	for range 3 {
		rt.Registry().SetState("worker", protocol.StateIdle)
		rt.OnStateTransition(context.Background(), "worker", protocol.StateBusy, protocol.StateIdle)
		rt.Registry().SetState("worker", protocol.StateBusy)
		rt.OnStateTransition(context.Background(), "worker", protocol.StateIdle, protocol.StateBusy)
	}

	pushes := inj.pushed()
	if len(pushes) != 1 {
		t.Fatalf("pushes = %d, want exactly 1 reminder", len(pushes))
	}
	if !strings.Contains(pushes[0].text, "Reminder") {
		t.Errorf("push text = %q, want reminder", pushes[0].text)
	}

	// Draining resets the episode; fresh backlog earns a fresh reminder.
	if _, err := rt.Drain("worker"); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	rt.Registry().SetState("worker", protocol.StateError)
	if _, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "master", To: "worker", Body: "ping again",
	}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	rt.Registry().SetState("worker", protocol.StateIdle)
	rt.OnStateTransition(context.Background(), "worker", protocol.StateError, protocol.StateIdle)

	if got := inj.pushed(); len(got) != 2 {
		t.Errorf("pushes = %d, want 2 after new backlog episode", len(got))
	}
}

func TestBroadcastExcludesErrorAndQuit(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, StateAwarePolicy{})
	mustRegister(t, rt, "a", "b", "c", "d")
	rt.Registry().SetState("a", protocol.StateIdle)
	rt.Registry().SetState("b", protocol.StateBusy)
	rt.Registry().SetState("c", protocol.StateError)
	rt.Registry().SetState("d", protocol.StateQuit)

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "master", To: protocol.Broadcast, Body: "standup in 5",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(res.Deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2 (error/quit excluded)", len(res.Deliveries))
	}

	// Excluded workers get nothing at all, not even a queued copy.
	if rt.Pending("c") != 0 || rt.Pending("d") != 0 {
		t.Errorf("pending c=%d d=%d, want 0/0", rt.Pending("c"), rt.Pending("d"))
	}
	if rt.Pending("a") != 1 || rt.Pending("b") != 1 {
		t.Errorf("pending a=%d b=%d, want 1/1", rt.Pending("a"), rt.Pending("b"))
	}
	if len(inj.pushed()) != 2 {
		t.Errorf("pushes = %d, want 2", len(inj.pushed()))
	}
}

func TestPushRetrySucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "worker")
	inj.failures = 2 // two failures, third attempt lands

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "a", To: "worker", Body: "retry me",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !res.Deliveries[0].Pushed {
		t.Fatal("delivery should succeed within the retry budget")
	}
}

func TestPushFailureKeepsMessageQueued(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "worker")
	inj.failures = 10 // exceeds the retry budget

	res, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "a", To: "worker", Body: "undeliverable",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	d := res.Deliveries[0]
	if d.Pushed {
		t.Fatal("delivery should have failed")
	}
	var delErr *protocol.DeliveryError
	if !errors.As(d.Err, &delErr) {
		t.Fatalf("d.Err = %v, want DeliveryError", d.Err)
	}
	if delErr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", delErr.Attempts)
	}

	// The failed message survives in the mailbox.
	msgs, err := rt.Drain("worker")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "undeliverable" {
		t.Fatalf("drained = %+v, want the queued message", msgs)
	}
}

func TestDeregisterDropsMailbox(t *testing.T) {
	t.Parallel()

	rt, _ := newTestRouter(t, BasicPolicy{})
	mustRegister(t, rt, "worker")

	if _, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "a", To: "worker", Body: "soon lost",
	}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if !rt.Deregister("worker") {
		t.Fatal("Deregister returned false")
	}
	if _, err := rt.Drain("worker"); err == nil {
		t.Error("Drain after deregister should fail")
	}
	if rt.Pending("worker") != 0 {
		t.Errorf("pending = %d, want 0", rt.Pending("worker"))
	}
}

func TestHighPriorityNotificationIsMarkedUrgent(t *testing.T) {
	t.Parallel()

	rt, inj := newTestRouter(t, StateAwarePolicy{})
	mustRegister(t, rt, "worker")
	rt.Registry().SetState("worker", protocol.StateIdle)

	if _, err := rt.Route(context.Background(), protocol.SendPayload{
		From: "a", To: "worker", Body: "fire", Priority: protocol.PriorityHigh,
	}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	pushes := inj.pushed()
	if len(pushes) != 1 || !strings.Contains(pushes[0].text, "URGENT") {
		t.Errorf("pushes = %+v, want URGENT prefix", pushes)
	}
}
