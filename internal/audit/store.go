// Package audit records every handled request's outcome in a SQLite store.
// Writes go through a single-writer goroutine fed by a buffered channel so
// audit never blocks request handling; a full queue drops the event with a
// logged warning instead.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/pfortner/internal/consts"
	"github.com/codefionn/pfortner/internal/logger"
)

// Decision classifies an audited outcome.
const (
	DecisionAllowed      = "allowed"
	DecisionDenied       = "denied"
	DecisionUnauthorized = "unauthorized"
	DecisionRateLimited  = "rate_limited"
	DecisionError        = "error"
)

// Event is one handled request.
type Event struct {
	ID          int64
	Time        time.Time
	RequestID   string
	Operation   string
	Identity    string
	ProcessPath string
	Decision    string
	Reason      string
	DurationMs  int64
}

// Store is the SQLite-backed audit trail.
type Store struct {
	db     *sql.DB
	dbPath string

	queue chan Event
	flush chan chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	dropMu  sync.Mutex
	dropped int64
}

// Open creates or opens the audit database at dbPath and starts the writer.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("audit: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	// One writer goroutine; a second connection would only add lock churn.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		queue:  make(chan Event, consts.DefaultAuditQueueSize),
		flush:  make(chan chan struct{}),
		done:   make(chan struct{}),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.writer()

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TIMESTAMP NOT NULL,
		request_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		identity TEXT NOT NULL,
		process_path TEXT NOT NULL,
		decision TEXT NOT NULL,
		reason TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events(time);
	CREATE TABLE IF NOT EXISTS audit_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: initialize schema: %w", err)
	}
	return nil
}

// Record queues one event. It never blocks: when the queue is full the
// event is dropped and counted.
func (s *Store) Record(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case s.queue <- ev:
	default:
		s.dropMu.Lock()
		s.dropped++
		n := s.dropped
		s.dropMu.Unlock()
		logger.Warn("audit queue full, dropped event for request %s (%d dropped total)", ev.RequestID, n)
	}
}

// Dropped returns how many events were lost to a full queue.
func (s *Store) Dropped() int64 {
	s.dropMu.Lock()
	defer s.dropMu.Unlock()
	return s.dropped
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.queue:
			s.insert(ev)
		case ack := <-s.flush:
			s.drain()
			close(ack)
		case <-s.done:
			s.drain()
			return
		}
	}
}

// drain empties whatever is queued right now.
func (s *Store) drain() {
	for {
		select {
		case ev := <-s.queue:
			s.insert(ev)
		default:
			return
		}
	}
}

func (s *Store) insert(ev Event) {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (time, request_id, operation, identity, process_path, decision, reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Time.UTC(), ev.RequestID, ev.Operation, ev.Identity, ev.ProcessPath, ev.Decision, ev.Reason, ev.DurationMs)
	if err != nil {
		logger.Error("audit insert failed: %v", err)
	}
}

// Recent returns up to limit events with id greater than afterID, oldest
// first. The watch CLI polls it.
func (s *Store) Recent(afterID int64, limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, time, request_id, operation, identity, process_path, decision, reason, duration_ms
		 FROM audit_events WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.RequestID, &ev.Operation, &ev.Identity,
			&ev.ProcessPath, &ev.Decision, &ev.Reason, &ev.DurationMs); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PruneBefore deletes events older than cutoff and returns how many went.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM audit_events WHERE time < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SetMeta stores a key/value pair (schema version, policy staleness marker).
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("audit: set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads a meta value; a missing key returns "" without error.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM audit_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: get meta %s: %w", key, err)
	}
	return value, nil
}

// Flush blocks until every event queued so far has been written. Tests and
// shutdown use it; request handling never waits on audit.
func (s *Store) Flush() {
	ack := make(chan struct{})
	select {
	case s.flush <- ack:
		<-ack
	case <-s.done:
	}
}

// Close stops the writer, drains the queue and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
