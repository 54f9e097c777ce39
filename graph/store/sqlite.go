package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps checkpoints in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process workflows
//   - Local workflows requiring persistence across restarts
//
// The store uses WAL mode for concurrent reads and a 5 second busy timeout.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./dev.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The database file and schema are created on first use.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./checkpoints.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS run_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			label TEXT NOT NULL,
			node_name TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(run_id, label)
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create run_checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_run_id ON run_checkpoints(run_id, created_at)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_run_id: %w", err)
	}
	return nil
}

// Save implements Store. A checkpoint with the same run ID and label is
// replaced.
func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO run_checkpoints (run_id, label, node_name, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, label) DO UPDATE SET
			node_name = excluded.node_name,
			payload = excluded.payload,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		cp.RunID, cp.Label, cp.NodeName, string(cp.Payload),
		cp.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, runID, label string) (Checkpoint, error) {
	if err := s.ensureOpen(); err != nil {
		return Checkpoint{}, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ? AND label = ?
	`
	return s.scanRow(s.db.QueryRowContext(ctx, query, runID, label))
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	if err := s.ensureOpen(); err != nil {
		return Checkpoint{}, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return s.scanRow(s.db.QueryRowContext(ctx, query, runID))
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		var (
			cp        Checkpoint
			payload   string
			createdAt string
		)
		if err := rows.Scan(&cp.RunID, &cp.Label, &cp.NodeName, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		cp.Payload = []byte(payload)
		cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// Close implements Store. Double-close is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *SQLiteStore) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func (s *SQLiteStore) scanRow(row *sql.Row) (Checkpoint, error) {
	var (
		cp        Checkpoint
		payload   string
		createdAt string
	)
	err := row.Scan(&cp.RunID, &cp.Label, &cp.NodeName, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	cp.Payload = []byte(payload)
	cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return cp, nil
}
