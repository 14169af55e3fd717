package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists journal entries to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite journal store.
// The path should be a file path (e.g., "./journal.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Create table and index
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			registry TEXT NOT NULL,
			slot TEXT NOT NULL,
			kind TEXT NOT NULL,
			instance_id TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			duration_ms REAL NOT NULL DEFAULT 0,
			sequence INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_journal_registry_slot
		ON journal(registry, slot)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	// Sequence is max + 1 within the registry's trail
	_, err := s.db.Exec(`
		INSERT INTO journal (id, registry, slot, kind, instance_id, error, duration_ms, sequence, timestamp)
		VALUES (
			?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(sequence) FROM journal WHERE registry = ?), 0) + 1,
			?
		)
	`, e.ID, e.Registry, e.Slot, string(e.Kind), e.InstanceID, e.Error, e.DurationMS,
		e.Registry, e.Timestamp.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(registry string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, slot, kind, instance_id, error, duration_ms, sequence, timestamp
		FROM journal
		WHERE registry = ?
		ORDER BY sequence
	`, registry)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, registry)
}

// ListSlot implements Store.
func (s *SQLiteStore) ListSlot(registry, slot string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, slot, kind, instance_id, error, duration_ms, sequence, timestamp
		FROM journal
		WHERE registry = ? AND slot = ?
		ORDER BY sequence
	`, registry, slot)
	if err != nil {
		return nil, fmt.Errorf("list slot journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, registry)
}

// Last implements Store.
func (s *SQLiteStore) Last(registry, slot string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrStoreClosed
	}

	var (
		e         Entry
		kind      string
		timestamp string
	)
	err := s.db.QueryRow(`
		SELECT id, slot, kind, instance_id, error, duration_ms, sequence, timestamp
		FROM journal
		WHERE registry = ? AND slot = ?
		ORDER BY sequence DESC
		LIMIT 1
	`, registry, slot).Scan(&e.ID, &e.Slot, &kind, &e.InstanceID, &e.Error,
		&e.DurationMS, &e.Sequence, &timestamp)

	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load last journal entry: %w", err)
	}

	e.Registry = registry
	e.Kind = Kind(kind)
	e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	return e, nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(registry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM journal WHERE registry = ?
	`, registry)
	if err != nil {
		return fmt.Errorf("purge journal: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanEntries reads the remaining rows of a journal query.
func scanEntries(rows *sql.Rows, registry string) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			kind      string
			timestamp string
		)
		if err := rows.Scan(&e.ID, &e.Slot, &kind, &e.InstanceID, &e.Error,
			&e.DurationMS, &e.Sequence, &timestamp); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Registry = registry
		e.Kind = Kind(kind)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, nil
}
