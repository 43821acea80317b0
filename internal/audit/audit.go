// Package audit is a SQLite-backed, non-authoritative log of health
// events, heartbeats-seen, and dispatched actions. It is never read by
// the Knowledge Loader or Tool Surface; its read paths are ReadMetrics
// and ListActions, and the HTTP /metrics endpoint does not use them (it
// reports only WebSocket subscriber counts). The
// filesystem store is the source of truth; this package exists purely
// for operational visibility.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/antigravity-dev/maestro/internal/actions"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed telemetry sink.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS action_records (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	target TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	detail TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS health_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS heartbeats_seen (
	project_slug TEXT PRIMARY KEY,
	seen_count INTEGER NOT NULL DEFAULT 0,
	last_seen_at DATETIME
);
`

// Open creates or migrates the audit database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordAction persists one Action Dispatcher invocation. Satisfies the
// actions.Recorder interface.
func (s *Store) RecordAction(rec actions.Record) {
	_, err := s.db.Exec(
		`INSERT INTO action_records (id, action, target, status, started_at, finished_at, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, finished_at=excluded.finished_at, detail=excluded.detail`,
		rec.ID, rec.Action, rec.Target, rec.Status, rec.StartedAt, rec.FinishedAt, rec.Detail,
	)
	_ = err // telemetry is best-effort; a write failure here must never fail the caller's action
}

// RecordHealthEvent logs a posture/health transition.
func (s *Store) RecordHealthEvent(eventType, detail string) error {
	_, err := s.db.Exec(`INSERT INTO health_events (event_type, detail) VALUES (?, ?)`, eventType, detail)
	if err != nil {
		return fmt.Errorf("audit: record health event: %w", err)
	}
	return nil
}

// TouchHeartbeatSeen increments the per-project heartbeat-seen counter
// and stamps its last-seen time.
func (s *Store) TouchHeartbeatSeen(projectSlug string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO heartbeats_seen (project_slug, seen_count, last_seen_at) VALUES (?, 1, ?)
		 ON CONFLICT(project_slug) DO UPDATE SET seen_count = seen_count + 1, last_seen_at = excluded.last_seen_at`,
		projectSlug, at,
	)
	if err != nil {
		return fmt.Errorf("audit: touch heartbeat seen: %w", err)
	}
	return nil
}

// Metrics is the snapshot ReadMetrics returns: operational counters that
// never touch the content-addressed store.
type Metrics struct {
	ActionsTotal      int            `json:"actions_total"`
	ActionsFailed     int            `json:"actions_failed"`
	HealthEventsTotal int            `json:"health_events_total"`
	HeartbeatsSeen    map[string]int `json:"heartbeats_seen"`
}

// ReadMetrics aggregates the telemetry tables into a single snapshot.
func (s *Store) ReadMetrics() (Metrics, error) {
	var m Metrics
	m.HeartbeatsSeen = make(map[string]int)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM action_records`).Scan(&m.ActionsTotal); err != nil {
		return Metrics{}, fmt.Errorf("audit: count actions: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM action_records WHERE status = 'failed'`).Scan(&m.ActionsFailed); err != nil {
		return Metrics{}, fmt.Errorf("audit: count failed actions: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM health_events`).Scan(&m.HealthEventsTotal); err != nil {
		return Metrics{}, fmt.Errorf("audit: count health events: %w", err)
	}

	rows, err := s.db.Query(`SELECT project_slug, seen_count FROM heartbeats_seen`)
	if err != nil {
		return Metrics{}, fmt.Errorf("audit: read heartbeats seen: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		var count int
		if err := rows.Scan(&slug, &count); err != nil {
			return Metrics{}, fmt.Errorf("audit: scan heartbeats seen: %w", err)
		}
		m.HeartbeatsSeen[slug] = count
	}
	return m, rows.Err()
}

// ListActions returns recent action records, newest first.
func (s *Store) ListActions(limit int) ([]actions.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, action, target, status, started_at, finished_at, detail
		 FROM action_records ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list actions: %w", err)
	}
	defer rows.Close()

	var out []actions.Record
	for rows.Next() {
		var rec actions.Record
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Target, &rec.Status, &rec.StartedAt, &finished, &rec.Detail); err != nil {
			return nil, fmt.Errorf("audit: scan action: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
