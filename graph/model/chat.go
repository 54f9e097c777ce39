// Package model defines the boundary to LLM chat providers.
//
// No two providers share a wire format, so each provider package is a thin
// HTTP client translating between the common Message/ChatOut types and the
// provider's own SDK. The execution engine only ever sees ChatModel.
package model

import "context"

// ChatModel is the interface implemented by every provider client.
//
// Implementations should:
//   - Handle provider-specific authentication
//   - Convert Message values to the provider's request format
//   - Parse provider responses back into ChatOut
//   - Respect context cancellation and timeouts
type ChatModel interface {
	// Name returns the provider-qualified model identifier, e.g.
	// "openai/gpt-4o". Used for event correlation and metrics labels.
	Name() string

	// Chat sends the conversation to the provider and returns its response.
	// tools may be nil when no tools are exposed to the model.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// StreamingChatModel is implemented by providers that can deliver a response
// incrementally. onFrame is invoked once per received frame, in order, on the
// calling goroutine; an onFrame error aborts the stream.
type StreamingChatModel interface {
	ChatModel

	ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onFrame func(frame string) error) (ChatOut, error)
}

// Message is a single turn in an LLM conversation.
type Message struct {
	// Role identifies the sender: RoleSystem, RoleUser, or RoleAssistant.
	Role string `json:"role"`

	// Content is the message text. May be empty for tool-call-only turns.
	Content string `json:"content"`
}

// Standard role constants, aligned with the conventions shared by the major
// providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may request. Schema follows JSON
// Schema and describes the expected arguments; nil for parameterless tools.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	// ID is the provider-assigned call identifier, when one exists.
	ID string

	// Name is the tool to invoke.
	Name string

	// Input holds the arguments the model supplied.
	Input map[string]any
}

// ChatOut is a provider response: generated text, requested tool calls, or
// both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}
