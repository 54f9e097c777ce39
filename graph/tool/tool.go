// Package tool defines executable tools that workflow nodes expose to LLMs,
// plus the registry and runner that dispatch model-requested calls.
package tool

import "context"

// Descriptor describes a tool to the model and to the registry.
type Descriptor struct {
	// Name is the unique identifier for the tool.
	//
	// Names should be lowercase with underscores, following function naming
	// conventions. Examples: "search_web", "get_weather", "calculate".
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Schema is the JSON Schema for the tool's arguments; nil for
	// parameterless tools.
	Schema map[string]any
}

// Tool defines the interface for executable tools that LLMs can invoke.
//
// Tools enable LLMs to interact with external systems and perform actions:
//   - Web searches
//   - Database queries
//   - API calls
//   - File operations
//   - Calculations
//
// Implementations should:
//   - Validate input in Validate, not Execute, so argument errors are
//     reported as validation failures rather than execution failures
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]any
//   - Be idempotent when possible
type Tool interface {
	// Describe returns the tool's descriptor.
	Describe() Descriptor

	// Validate checks the arguments against the tool's expectations.
	// A non-nil error rejects the call before Execute runs.
	Validate(input map[string]any) error

	// Execute runs the tool with validated input.
	//
	// Parameters:
	//   - ctx: Context for cancellation, timeout, and metadata propagation
	//   - input: Tool arguments as key-value pairs (may be nil)
	//
	// Returns:
	//   - map[string]any: Tool execution result
	//   - error: Execution errors or context cancellation. Wrap retryable
	//     failures in an ExecutionError with Transient set.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Func adapts a plain function into a Tool with no argument validation.
//
// Example:
//
//	echo := tool.Func(tool.Descriptor{Name: "echo"}, func(ctx context.Context, input map[string]any) (map[string]any, error) {
//	    return input, nil
//	})
func Func(desc Descriptor, fn func(ctx context.Context, input map[string]any) (map[string]any, error)) Tool {
	return &funcTool{desc: desc, fn: fn}
}

type funcTool struct {
	desc Descriptor
	fn   func(ctx context.Context, input map[string]any) (map[string]any, error)
}

func (t *funcTool) Describe() Descriptor { return t.desc }

func (t *funcTool) Validate(map[string]any) error { return nil }

func (t *funcTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return t.fn(ctx, input)
}
