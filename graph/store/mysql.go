package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// It keeps checkpoints in a relational database. Designed for:
//   - Production workflows requiring persistence
//   - Distributed systems where several workers share one backend
//   - Long-running workflows that survive process restarts
//
// MySQLStore uses connection pooling and parameterized statements.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/workflows
//	user:password@tcp(127.0.0.1:3306)/workflows?parseTime=true
//
// Never hardcode credentials in source; read the DSN from the environment:
//
//	dsn := os.Getenv("MYSQL_DSN")
//	st, err := store.NewMySQLStore(dsn)
//
// The store creates its table on first use and verifies the connection with
// a ping before returning. parseTime is enabled automatically; timestamp
// columns scan directly into time.Time.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS run_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			label VARCHAR(255) NOT NULL,
			node_name VARCHAR(255) NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_run_created (run_id, created_at),
			UNIQUE KEY unique_run_label (run_id, label)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create run_checkpoints table: %w", err)
	}
	return nil
}

// Save implements Store. A checkpoint with the same run ID and label is
// replaced.
func (m *MySQLStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO run_checkpoints (run_id, label, node_name, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node_name = VALUES(node_name),
			payload = VALUES(payload),
			created_at = VALUES(created_at)
	`
	_, err := m.db.ExecContext(ctx, query,
		cp.RunID, cp.Label, cp.NodeName, string(cp.Payload), cp.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (m *MySQLStore) Load(ctx context.Context, runID, label string) (Checkpoint, error) {
	if err := m.ensureOpen(); err != nil {
		return Checkpoint{}, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ? AND label = ?
	`
	return m.scanRow(m.db.QueryRowContext(ctx, query, runID, label))
}

// Latest implements Store.
func (m *MySQLStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	if err := m.ensureOpen(); err != nil {
		return Checkpoint{}, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return m.scanRow(m.db.QueryRowContext(ctx, query, runID))
}

// List implements Store.
func (m *MySQLStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id, label, node_name, payload, created_at
		FROM run_checkpoints
		WHERE run_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := m.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		var (
			cp      Checkpoint
			payload string
		)
		if err := rows.Scan(&cp.RunID, &cp.Label, &cp.NodeName, &payload, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		cp.Payload = []byte(payload)
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// Close implements Store. Double-close is a no-op.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

func (m *MySQLStore) ensureOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func (m *MySQLStore) scanRow(row *sql.Row) (Checkpoint, error) {
	var (
		cp      Checkpoint
		payload string
	)
	err := row.Scan(&cp.RunID, &cp.Label, &cp.NodeName, &payload, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	cp.Payload = []byte(payload)
	return cp, nil
}
