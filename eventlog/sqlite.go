package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// appendRetries bounds the retry loop when two appenders for the same task
// race to the same version. The unique constraint makes the collision
// visible; retrying recomputes max(version)+1.
const appendRetries = 5

// SQLiteLog implements Log on a SQLite database file.
type SQLiteLog struct {
	db     *sql.DB
	closed atomic.Bool
	idGen  func() string
}

// SQLiteLogOption configures a SQLiteLog.
type SQLiteLogOption func(*SQLiteLog)

// WithSQLiteIDGenerator sets a custom event ID generator. For tests.
func WithSQLiteIDGenerator(gen func() string) SQLiteLogOption {
	return func(l *SQLiteLog) {
		l.idGen = gen
	}
}

// NewSQLiteLog opens (creating if necessary) an event log at dbPath.
func NewSQLiteLog(dbPath string, opts ...SQLiteLogOption) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL for concurrent readers alongside the single writer.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLog{db: db, idGen: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

// migrate runs idempotent schema migrations.
func (l *SQLiteLog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload BLOB,
		user_id TEXT,
		agent_name TEXT,
		metadata TEXT,
		timestamp DATETIME NOT NULL,
		version INTEGER NOT NULL,
		UNIQUE (task_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_task_version ON events(task_id, version);
	CREATE INDEX IF NOT EXISTS idx_events_task_type ON events(task_id, event_type);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append inserts a new event, computing version inside the INSERT itself.
// The UNIQUE (task_id, version) constraint turns a lost race into a
// constraint violation, which is retried with a freshly computed version.
func (l *SQLiteLog) Append(ctx context.Context, taskID, eventType string, payload []byte, opts ...AppendOption) (*Event, error) {
	if err := validateAppend(taskID, eventType); err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	e := &Event{
		ID:        l.idGen(),
		TaskID:    taskID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		_, err := l.db.ExecContext(ctx, `
			INSERT INTO events (id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?,
				(SELECT COALESCE(MAX(version), 0) + 1 FROM events WHERE task_id = ?))`,
			e.ID, e.TaskID, e.Type, e.Payload, nullable(e.UserID), nullable(e.AgentName),
			nullableBytes(metadata), e.Timestamp, e.TaskID)
		if err == nil {
			row := l.db.QueryRowContext(ctx, `SELECT version FROM events WHERE id = ?`, e.ID)
			if err := row.Scan(&e.Version); err != nil {
				return nil, fmt.Errorf("read back version: %w", err)
			}
			return e, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("append event: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("append event: version conflict persisted after %d retries: %w", appendRetries, lastErr)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// FindByTask returns all events for a task ordered by ascending version.
func (l *SQLiteLog) FindByTask(ctx context.Context, taskID string) ([]*Event, error) {
	return l.query(ctx, `SELECT id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version
		FROM events WHERE task_id = ? ORDER BY version ASC`, taskID)
}

// FindByTaskDesc returns all events for a task ordered by descending version.
func (l *SQLiteLog) FindByTaskDesc(ctx context.Context, taskID string) ([]*Event, error) {
	return l.query(ctx, `SELECT id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version
		FROM events WHERE task_id = ? ORDER BY version DESC`, taskID)
}

// LastEvent returns the highest-version event for a task.
func (l *SQLiteLog) LastEvent(ctx context.Context, taskID string) (*Event, error) {
	events, err := l.query(ctx, `SELECT id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version
		FROM events WHERE task_id = ? ORDER BY version DESC LIMIT 1`, taskID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events[0], nil
}

// LastEventOfType returns the highest-version event of the given type.
func (l *SQLiteLog) LastEventOfType(ctx context.Context, taskID, eventType string) (*Event, error) {
	events, err := l.query(ctx, `SELECT id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version
		FROM events WHERE task_id = ? AND event_type = ? ORDER BY version DESC LIMIT 1`, taskID, eventType)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events[0], nil
}

// Replay returns all events with version >= fromVersion in ascending order.
func (l *SQLiteLog) Replay(ctx context.Context, taskID string, fromVersion uint64) ([]*Event, error) {
	return l.query(ctx, `SELECT id, task_id, event_type, payload, user_id, agent_name, metadata, timestamp, version
		FROM events WHERE task_id = ? AND version >= ? ORDER BY version ASC`, taskID, fromVersion)
}

// Summary returns per-type event counts for a task.
func (l *SQLiteLog) Summary(ctx context.Context, taskID string) (map[string]int, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM events WHERE task_id = ? GROUP BY event_type`, taskID)
	if err != nil {
		return nil, fmt.Errorf("summarize events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

// query runs a SELECT over the events table and scans the results.
func (l *SQLiteLog) query(ctx context.Context, q string, args ...interface{}) ([]*Event, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		var e Event
		var userID, agentName sql.NullString
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &e.Payload, &userID, &agentName,
			&metadata, &e.Timestamp, &e.Version); err != nil {
			return nil, err
		}
		e.UserID = userID.String
		e.AgentName = agentName.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for event %s: %w", e.ID, err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close shuts down the log.
func (l *SQLiteLog) Close() error {
	if l.closed.Swap(true) {
		return ErrClosed
	}
	return l.db.Close()
}

// Ensure SQLiteLog implements Log.
var _ Log = (*SQLiteLog)(nil)
