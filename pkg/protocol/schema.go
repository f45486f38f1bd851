package protocol

// SchemaDDL defines the SQLite schema for the orc runtime event log.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Runtime event log: state transitions, routed messages, anomalies
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    worker_id TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_worker ON events(worker_id, id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, id);
`

// Event represents a row in the events SQLite table.
type Event struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	WorkerID  string `json:"worker_id"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}
