package tool

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/pipeline"
)

// Runner dispatches model-requested tool calls against a registry, reporting
// every call to the lifecycle pipeline.
//
// Each call gets a fresh uuid call id, shared by its starting and terminal
// events so observers can pair them. The call sequence is:
//
//  1. Resolve the tool (selection, then registry lookup)
//  2. Validate arguments; rejection emits ToolValidationFailed
//  3. Execute; transient failures retry up to MaxRetries with a fixed delay
//  4. Emit ToolCallCompleted or ToolCallFailed
type Runner struct {
	registry *Registry
	pipe     *pipeline.Pipeline
	sel      Selection

	// MaxRetries bounds re-execution after transient failures. Zero means
	// no retries.
	MaxRetries int

	// RetryDelay is the pause between retry attempts.
	RetryDelay time.Duration
}

// NewRunner creates a Runner. A nil selection admits every registered tool;
// a nil pipeline suppresses event reporting.
func NewRunner(registry *Registry, pipe *pipeline.Pipeline, sel Selection) *Runner {
	return &Runner{
		registry:   registry,
		pipe:       pipe,
		sel:        sel,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Specs returns the tool specs this runner exposes to a model.
func (r *Runner) Specs() []model.ToolSpec {
	return r.registry.Specs(r.sel)
}

// Run executes one model-requested call and returns the tool's output.
//
// The returned error is a *ValidationError, *ExecutionError, *NotFoundError,
// a pipeline handler error, or a context error; callers deciding whether to
// surface the failure to the model can switch on the type with errors.As.
func (r *Runner) Run(ctx context.Context, runID string, call model.ToolCall) (map[string]any, error) {
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	args := encodeArgs(call.Input)

	if err := r.notify(ctx, pipeline.NewToolCallStarting(runID, callID, call.Name, args)); err != nil {
		return nil, err
	}

	if r.sel != nil && !r.sel(call.Name) {
		err := &NotFoundError{Tool: call.Name}
		if nerr := r.notify(ctx, pipeline.NewToolCallFailed(runID, callID, call.Name, args, err.Error())); nerr != nil {
			return nil, nerr
		}
		return nil, err
	}
	t, err := r.registry.Get(call.Name)
	if err != nil {
		if nerr := r.notify(ctx, pipeline.NewToolCallFailed(runID, callID, call.Name, args, err.Error())); nerr != nil {
			return nil, nerr
		}
		return nil, err
	}

	if err := t.Validate(call.Input); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			verr = &ValidationError{Tool: call.Name, Reason: err.Error()}
		}
		if nerr := r.notify(ctx, pipeline.NewToolValidationFailed(runID, callID, call.Name, args, verr.Reason)); nerr != nil {
			return nil, nerr
		}
		return nil, verr
	}

	result, err := r.execute(ctx, t, call.Input)
	if err != nil {
		if nerr := r.notify(ctx, pipeline.NewToolCallFailed(runID, callID, call.Name, args, err.Error())); nerr != nil {
			return nil, nerr
		}
		return nil, err
	}

	if err := r.notify(ctx, pipeline.NewToolCallCompleted(runID, callID, call.Name, args, encodeArgs(result))); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, t Tool, input map[string]any) (map[string]any, error) {
	name := t.Describe().Name

	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := t.Execute(ctx, input)
		if err == nil {
			return result, nil
		}

		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			execErr = &ExecutionError{Tool: name, Err: err}
		}
		lastErr = execErr
		if !execErr.Transient || attempt >= r.MaxRetries {
			return nil, lastErr
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.RetryDelay):
		}
	}
}

// notify dispatches an event. Handler errors propagate and abort the call;
// handlers are not sandboxed.
func (r *Runner) notify(ctx context.Context, event pipeline.Event) error {
	if r.pipe == nil {
		return nil
	}
	return r.pipe.Notify(ctx, event)
}

func encodeArgs(v map[string]any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
