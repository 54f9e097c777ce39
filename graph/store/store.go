// Package store provides persistence backends for workflow checkpoints.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run ID or checkpoint label does
// not exist.
var ErrNotFound = errors.New("not found")

// Checkpoint is a snapshot of a run's execution state, captured when the
// run passes a checkpoint marker.
type Checkpoint struct {
	// RunID identifies the run the snapshot belongs to.
	RunID string `json:"runId"`

	// Label is the checkpoint's name within the run. Saving the same label
	// twice overwrites the earlier snapshot.
	Label string `json:"label"`

	// NodeName is the node that was executing when the snapshot was taken.
	NodeName string `json:"nodeName"`

	// Payload is the JSON-encoded execution state.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt records when the snapshot was taken, in UTC.
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists checkpoints for later resumption.
//
// Implementations can use:
//   - In-memory storage (for testing, see memory.go)
//   - SQLite for single-process local persistence (sqlite.go)
//   - MySQL for shared persistence across processes (mysql.go)
//
// All implementations must be safe for concurrent use: parallel branches of
// a run may save checkpoints at the same time.
type Store interface {
	// Save persists a checkpoint, overwriting any earlier checkpoint with
	// the same run ID and label.
	Save(ctx context.Context, cp Checkpoint) error

	// Load retrieves the checkpoint with the given run ID and label.
	// Returns ErrNotFound if no such checkpoint exists.
	Load(ctx context.Context, runID, label string) (Checkpoint, error)

	// Latest retrieves the most recently saved checkpoint for a run.
	// Returns ErrNotFound if the run has no checkpoints.
	Latest(ctx context.Context, runID string) (Checkpoint, error)

	// List returns all checkpoints for a run, oldest first.
	// An unknown run yields an empty slice, not an error.
	List(ctx context.Context, runID string) ([]Checkpoint, error)

	// Close releases resources held by the store. After Close, all other
	// operations return an error. Double-close is a no-op.
	Close() error
}
