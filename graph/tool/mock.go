package tool

import (
	"context"
	"sync"
)

// MockTool is a scriptable Tool for tests.
//
// Result and Err are returned by every Execute call; ValidateErr, if set,
// rejects every call before execution. Invocations are recorded in Inputs.
// Safe for concurrent use.
type MockTool struct {
	Desc        Descriptor
	Result      map[string]any
	Err         error
	ValidateErr error

	// FailuresBeforeSuccess makes the first N Execute calls fail with Err
	// before succeeding, for retry tests.
	FailuresBeforeSuccess int

	mu       sync.Mutex
	Inputs   []map[string]any
	attempts int
}

func (m *MockTool) Describe() Descriptor { return m.Desc }

func (m *MockTool) Validate(map[string]any) error { return m.ValidateErr }

func (m *MockTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Inputs = append(m.Inputs, input)
	m.attempts++

	if m.FailuresBeforeSuccess > 0 && m.attempts <= m.FailuresBeforeSuccess {
		return nil, m.Err
	}
	if m.FailuresBeforeSuccess == 0 && m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// CallCount reports how many times Execute was invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}
