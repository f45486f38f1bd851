package eventlog

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "orc.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestLogAndQuery(t *testing.T) {
	t.Parallel()

	log := openTestLog(t)
	ctx := context.Background()

	log.Log(ctx, "state_change", "monitor", "alice", `{"old":"unknown","new":"idle"}`)
	log.Log(ctx, "message_queued", "router", "bob", `{"message_id":"m1"}`)
	log.Log(ctx, "state_change", "monitor", "alice", `{"old":"idle","new":"busy"}`)

	all, err := log.Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("events = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].Type != "state_change" || all[0].Payload != `{"old":"idle","new":"busy"}` {
		t.Errorf("all[0] = %+v, want the latest state_change", all[0])
	}

	alice, err := log.Query(ctx, QueryOpts{WorkerID: "alice"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(alice) != 2 {
		t.Errorf("alice events = %d, want 2", len(alice))
	}

	typed, err := log.Query(ctx, QueryOpts{EventType: "message_queued"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(typed) != 1 || typed[0].WorkerID != "bob" {
		t.Errorf("typed = %+v, want bob's message_queued", typed)
	}

	limited, err := log.Query(ctx, QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestQueryAfterID(t *testing.T) {
	t.Parallel()

	log := openTestLog(t)
	ctx := context.Background()

	log.Log(ctx, "a", "test", "", "")
	log.Log(ctx, "b", "test", "", "")

	all, err := log.Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	first := all[len(all)-1].ID

	fresh, err := log.Query(ctx, QueryOpts{AfterID: first})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(fresh) != 1 || fresh[0].Type != "b" {
		t.Errorf("fresh = %+v, want only event b", fresh)
	}
}

func TestLatestStates(t *testing.T) {
	t.Parallel()

	log := openTestLog(t)
	ctx := context.Background()

	log.Log(ctx, "state_change", "monitor", "alice", `{"old":"unknown","new":"idle"}`)
	log.Log(ctx, "state_change", "monitor", "bob", `{"old":"unknown","new":"busy"}`)
	log.Log(ctx, "state_change", "monitor", "alice", `{"old":"idle","new":"error"}`)
	log.Log(ctx, "anomaly", "monitor", "alice", `{"kind":"error"}`)

	states, err := log.LatestStates(ctx)
	if err != nil {
		t.Fatalf("LatestStates: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("states = %v, want 2 workers", states)
	}
	if states["alice"] != `{"old":"idle","new":"error"}` {
		t.Errorf("alice = %q, want latest transition", states["alice"])
	}
	if states["bob"] != `{"old":"unknown","new":"busy"}` {
		t.Errorf("bob = %q", states["bob"])
	}
}

func TestOpenReadOnlyMissingDB(t *testing.T) {
	t.Parallel()

	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Error("expected error for missing database")
	}
}
