package tool

import "fmt"

// ValidationError reports arguments rejected before execution. The runner
// reports it as a validation failure and never retries.
type ValidationError struct {
	// Tool is the tool whose validation rejected the call.
	Tool string

	// Reason describes what was wrong with the arguments.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %s", e.Tool, e.Reason)
}

// ExecutionError reports a failure while a tool was running.
type ExecutionError struct {
	// Tool is the tool that failed.
	Tool string

	// Transient marks failures worth retrying (network hiccups, rate
	// limits). The runner retries transient failures up to its retry limit.
	Transient bool

	// Err is the underlying cause.
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q: execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NotFoundError reports a call to a tool name absent from the registry or
// excluded by the active selection.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q: not available", e.Tool)
}
