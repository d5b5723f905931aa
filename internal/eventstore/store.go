// Package eventstore persists per-run events (run started, file generated,
// file failed, run completed) in a SQLite database under the output tree.
// The history command aggregates them into a recent-run listing.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event types appended by the pipeline.
const (
	EventRunStarted    = "RunStarted"
	EventFileGenerated = "FileGenerated"
	EventFileFailed    = "FileFailed"
	EventRunCompleted  = "RunCompleted"
)

// FileName is the event database's name inside the output directory.
const FileName = ".pydocgen-history.db"

// Event is one persisted pipeline event.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// RunRecord is an aggregated view of one run, built from its events.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Generated  int       `json:"generated"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Store is a SQLite-backed event store. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and if needed initializes) the event store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize event store schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append adds one event. payload may be nil; non-nil payloads are stored as
// JSON.
func (s *Store) Append(ctx context.Context, runID, eventType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		runID, eventType, time.Now().Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventsForRun returns all events of one run in insertion order.
func (s *Store) EventsForRun(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, timestamp, payload FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentRuns aggregates the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, MIN(timestamp), MAX(timestamp),
			SUM(event_type = 'FileGenerated'),
			SUM(event_type = 'FileFailed')
		FROM events
		GROUP BY run_id
		ORDER BY MIN(timestamp) DESC, run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished int64
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Generated, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	// Skipped counts live only in the RunCompleted payload.
	for i := range records {
		if err := s.fillCompletion(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) fillCompletion(ctx context.Context, r *RunRecord) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM events WHERE run_id = ? AND event_type = ? ORDER BY id DESC LIMIT 1",
		r.RunID, EventRunCompleted,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query completion event: %w", err)
	}

	var completion struct {
		Skipped int `json:"skipped"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &completion); err != nil {
			return fmt.Errorf("unmarshal completion payload: %w", err)
		}
	}
	r.Skipped = completion.Skipped
	return nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &ts, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
