package router //nolint:testpackage // uses the nowFunc test seam

import (
	"testing"
	"time"

	"orc/pkg/protocol"
)

func TestRegistryListSortedAndCopied(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, id := range []string{"zoe", "Alice", "bob"} {
		if err := reg.Register(id, "", "pane"); err != nil {
			t.Fatalf("Register(%q): %v", id, err)
		}
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"Alice", "bob", "zoe"} {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}

	// Mutating the returned copy must not leak into the registry.
	list[0].State = protocol.StateError
	if reg.StateOf("alice") == protocol.StateError {
		t.Error("List returned a live reference, want a copy")
	}
}

func TestRegistrySetState(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	reg.nowFunc = func() time.Time { return now }

	if err := reg.Register("alice", "", "pane"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	now = now.Add(time.Minute)
	old, ok := reg.SetState("ALICE", protocol.StateBusy)
	if !ok || old != protocol.StateUnknown {
		t.Errorf("SetState = (%v, %v), want (unknown, true)", old, ok)
	}

	w, _ := reg.Lookup("alice")
	if w.State != protocol.StateBusy {
		t.Errorf("state = %v, want busy", w.State)
	}
	if !w.StateChangedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("StateChangedAt = %v", w.StateChangedAt)
	}

	// Setting the same state again does not bump the timestamp.
	now = now.Add(time.Minute)
	if _, ok := reg.SetState("alice", protocol.StateBusy); !ok {
		t.Fatal("SetState on same state failed")
	}
	w, _ = reg.Lookup("alice")
	if !w.StateChangedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("StateChangedAt moved on a no-op transition: %v", w.StateChangedAt)
	}

	if _, ok := reg.SetState("ghost", protocol.StateIdle); ok {
		t.Error("SetState on unknown worker should report !ok")
	}
}

func TestRegistryStateOfUnknownWorker(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if got := reg.StateOf("nobody"); got != protocol.StateUnknown {
		t.Errorf("StateOf = %v, want unknown", got)
	}
}
