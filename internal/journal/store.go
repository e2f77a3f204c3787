// Package journal records the raw events the source routes into a SQLite
// database, one session per daemon run, for later inspection with xevctl.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("journal: session not found")

// Session is one recording run.
type Session struct {
	ID        string
	Display   string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is open
	Events    int64
}

// Open reports whether the session has not been ended.
func (s Session) Open() bool { return s.EndedAt.IsZero() }

// Record is one routed raw event.
type Record struct {
	ID         int64
	SessionID  string
	Sequence   uint16
	Name       string
	Window     uint32
	ServerTime uint32
	RecordedAt time.Time
}

// Store is the journal database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is still reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (int, error) { return schemaVersion(s.db) }

// StartSession opens a new session.
func (s *Store) StartSession(display string, at time.Time) (Session, error) {
	sess := Session{ID: uuid.NewString(), Display: display, StartedAt: at}
	if _, err := s.db.Exec(
		"INSERT INTO sessions (id, display, started_ns) VALUES (?, ?, ?)",
		sess.ID, sess.Display, at.UnixNano(),
	); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(id string, at time.Time) error {
	res, err := s.db.Exec("UPDATE sessions SET ended_ns = ? WHERE id = ?", at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// InsertRecords writes a batch for one session in a single transaction.
func (s *Store) InsertRecords(sessionID string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO events (session_id, sequence, name, window_id, server_time, recorded_ns)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(sessionID, r.Sequence, r.Name, r.Window, r.ServerTime, r.RecordedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if _, err := tx.Exec(
		"UPDATE sessions SET event_count = event_count + ? WHERE id = ?",
		len(recs), sessionID,
	); err != nil {
		return fmt.Errorf("update session count: %w", err)
	}
	return tx.Commit()
}

// Recent returns the newest n records across sessions, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, sequence, name, window_id, server_time, recorded_ns
		FROM events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SessionRecords returns a session's records in recording order.
func (s *Store) SessionRecords(sessionID string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, sequence, name, window_id, server_time, recorded_ns
		FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, display, started_ns, ended_ns, event_count
		FROM sessions ORDER BY started_ns DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Display, &started, &ended, &sess.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = time.Unix(0, started)
		if ended.Valid {
			sess.EndedAt = time.Unix(0, ended.Int64)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Prune deletes records older than before and returns how many went.
func (s *Store) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM events WHERE recorded_ns < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r        Record
			recorded int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Sequence, &r.Name, &r.Window, &r.ServerTime, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.RecordedAt = time.Unix(0, recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}
