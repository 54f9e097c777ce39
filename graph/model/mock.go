package model

import (
	"context"
	"strings"
	"sync"
)

// MockChatModel is a scriptable ChatModel for tests.
//
// Each Chat call returns the next entry of Responses; once consumed, the
// last response repeats. Set Err to inject a failure. All invocations are
// recorded in Calls for assertions. Safe for concurrent use.
type MockChatModel struct {
	// ModelName reported by Name(). Defaults to "mock".
	ModelName string

	// Responses is the scripted response sequence.
	Responses []ChatOut

	// Err, if set, is returned by Chat instead of a response.
	Err error

	// Calls records every invocation.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records one Chat invocation.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

func (m *MockChatModel) Name() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// ChatStream implements StreamingChatModel by splitting the scripted
// response text into whitespace-delimited frames.
func (m *MockChatModel) ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onFrame func(frame string) error) (ChatOut, error) {
	out, err := m.Chat(ctx, messages, tools)
	if err != nil {
		return ChatOut{}, err
	}
	for i, word := range strings.Fields(out.Text) {
		frame := word
		if i > 0 {
			frame = " " + word
		}
		if err := onFrame(frame); err != nil {
			return ChatOut{}, err
		}
	}
	return out, nil
}

// Reset clears call history and rewinds the response sequence.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount reports how many times Chat was invoked.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
