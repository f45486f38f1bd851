// Package eventlog persists coordinator diagnostics — state transitions,
// routed messages, anomalies — to a SQLite event log, and provides the
// read side used by `orc logs`, `orc agents`, and the dashboard. The log
// is diagnostics only; no coordination state is recovered from it.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"orc/pkg/protocol"
)

// Log wraps the SQLite event database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the event database at dbPath with WAL
// journaling and initializes the schema.
func Open(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Log{db: db}, nil
}

// OpenReadOnly opens an existing event database without write access, so
// read-side tools never block the daemon.
func OpenReadOnly(dbPath string) (*Log, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("event db not found: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping event db: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Log inserts one event row. Best-effort from the caller's point of view:
// the router and monitor treat a failed insert as lost diagnostics, not a
// coordination failure, which is why this satisfies their EventSink
// interfaces without returning an error.
func (l *Log) Log(ctx context.Context, evType, source, workerID, payload string) {
	_, _ = l.db.ExecContext(ctx,
		`INSERT INTO events (type, source, worker_id, payload) VALUES (?, ?, ?, ?)`,
		evType, source, workerID, payload)
}

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	WorkerID  string     // filter to one worker ("" = all)
	EventType string     // filter to one event type ("" = all)
	After     *time.Time // events created at or after this time
	AfterID   int64      // events with an id greater than this (0 = all)
	Limit     int        // 0 = no limit
}

// Query retrieves events matching opts, newest first.
func (l *Log) Query(ctx context.Context, opts QueryOpts) ([]protocol.Event, error) {
	query, args := buildQuery(opts)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []protocol.Event
	for rows.Next() {
		var e protocol.Event
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.WorkerID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestStates returns the most recent state_change payload per worker, a
// cheap read-side view for `orc agents` when the daemon owns the registry.
func (l *Log) LatestStates(ctx context.Context) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT worker_id, payload FROM events
		WHERE type = 'state_change' AND id IN (
			SELECT MAX(id) FROM events WHERE type = 'state_change' GROUP BY worker_id
		)`)
	if err != nil {
		return nil, fmt.Errorf("query latest states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var workerID, payload string
		if err := rows.Scan(&workerID, &payload); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		out[workerID] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}
	return out, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := `SELECT id, type, source, COALESCE(worker_id, ''), COALESCE(payload, ''), created_at FROM events`

	if opts.WorkerID != "" {
		conditions = append(conditions, "worker_id = ?")
		args = append(args, opts.WorkerID)
	}
	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.EventType)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format("2006-01-02 15:04:05"))
	}
	if opts.AfterID > 0 {
		conditions = append(conditions, "id > ?")
		args = append(args, opts.AfterID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

// DefaultDBPath returns the default path to the event database, honoring
// the ORC_DIR override used in tests.
func DefaultDBPath() string {
	if dir := os.Getenv("ORC_DIR"); dir != "" {
		return filepath.Join(dir, "orc.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, protocol.OrcDir, "orc.db")
}
