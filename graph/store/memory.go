package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store.
//
// Designed for:
//   - Unit tests with zero setup
//   - Single-run workflows where persistence across restarts is not needed
//
// Data is lost when the process exits. Thread-safe.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[string]Checkpoint // runID -> label -> checkpoint
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string]Checkpoint)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	labels, ok := s.runs[cp.RunID]
	if !ok {
		labels = make(map[string]Checkpoint)
		s.runs[cp.RunID] = labels
	}
	labels[cp.Label] = cp
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, runID, label string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Checkpoint{}, fmt.Errorf("store is closed")
	}

	cp, ok := s.runs[runID][label]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	return cp, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	checkpoints, err := s.List(ctx, runID)
	if err != nil {
		return Checkpoint{}, err
	}
	if len(checkpoints) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return checkpoints[len(checkpoints)-1], nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	labels := s.runs[runID]
	checkpoints := make([]Checkpoint, 0, len(labels))
	for _, cp := range labels {
		checkpoints = append(checkpoints, cp)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		if !checkpoints[i].CreatedAt.Equal(checkpoints[j].CreatedAt) {
			return checkpoints[i].CreatedAt.Before(checkpoints[j].CreatedAt)
		}
		return checkpoints[i].Label < checkpoints[j].Label
	})
	return checkpoints, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
