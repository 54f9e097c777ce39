package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weavegraph/weave/graph/store"
)

// Checkpointer saves and restores opaque run snapshots through a
// store.Store. It is the persistence half of RunContext.Checkpoint;
// workflows that never checkpoint never need one.
//
// Checkpointing is unsupported inside parallel branches; the engine rejects
// merges whose forks carry a checkpoint marker.
type Checkpointer struct {
	backend store.Store
}

// NewCheckpointer creates a Checkpointer over the given backend.
func NewCheckpointer(backend store.Store) *Checkpointer {
	return &Checkpointer{backend: backend}
}

// Save snapshots the payload under (runID, label). The payload must be
// JSON-serializable; saving the same label twice overwrites.
func (c *Checkpointer) Save(ctx context.Context, runID, label, nodeName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("checkpoint %q: encoding payload: %w", label, err)
	}
	return c.backend.Save(ctx, store.Checkpoint{
		RunID:     runID,
		Label:     label,
		NodeName:  nodeName,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	})
}

// Load restores the payload saved under (runID, label) into out, which must
// be a pointer. Returns store.ErrNotFound when the checkpoint does not
// exist.
func (c *Checkpointer) Load(ctx context.Context, runID, label string, out any) error {
	cp, err := c.backend.Load(ctx, runID, label)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(cp.Payload, out); err != nil {
		return fmt.Errorf("checkpoint %q: decoding payload: %w", label, err)
	}
	return nil
}

// Latest restores the most recent checkpoint of a run into out and returns
// its label.
func (c *Checkpointer) Latest(ctx context.Context, runID string, out any) (string, error) {
	cp, err := c.backend.Latest(ctx, runID)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(cp.Payload, out); err != nil {
		return "", fmt.Errorf("checkpoint %q: decoding payload: %w", cp.Label, err)
	}
	return cp.Label, nil
}
