package graph

import (
	"context"

	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/pipeline"
	"github.com/weavegraph/weave/graph/store"
	"github.com/weavegraph/weave/graph/tool"
)

// Agent binds a strategy graph to the collaborators a run needs: the
// lifecycle pipeline, a chat model, a tool registry, and an optional
// checkpoint backend. Each Run executes the strategy once under a fresh run
// context and brackets it with agent and strategy lifecycle events.
type Agent struct {
	id       string
	strategy *Subgraph
	pipe     *pipeline.Pipeline
	engine   *Engine
	executor *LLMExecutor
	tools    *tool.Registry
	ckpt     *Checkpointer
	limit    int
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithChatModel sets the default model for the agent's LLM executor.
func WithChatModel(m model.ChatModel) AgentOption {
	return func(a *Agent) { a.executor = NewLLMExecutor(m) }
}

// WithToolRegistry sets the tools visible to the agent's runs, filtered per
// subgraph by its tool selection.
func WithToolRegistry(reg *tool.Registry) AgentOption {
	return func(a *Agent) { a.tools = reg }
}

// WithCheckpointBackend enables checkpointing through the given store.
func WithCheckpointBackend(backend store.Store) AgentOption {
	return func(a *Agent) { a.ckpt = NewCheckpointer(backend) }
}

// WithStepLimit overrides the per-run node-execution budget.
func WithStepLimit(limit int) AgentOption {
	return func(a *Agent) { a.limit = limit }
}

// NewAgent creates an agent over a built strategy graph. A nil pipeline
// suppresses event reporting.
func NewAgent(id string, strategy *Subgraph, pipe *pipeline.Pipeline, opts ...AgentOption) *Agent {
	a := &Agent{
		id:       id,
		strategy: strategy,
		pipe:     pipe,
		engine:   NewEngine(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.id }

// Strategy returns the agent's strategy graph.
func (a *Agent) Strategy() *Subgraph { return a.strategy }

// Run executes the strategy once with the given input and returns the value
// that reached Finish.
//
// Event order: AgentStarting, StrategyStarting, the node events of the run,
// then StrategyCompleted and AgentCompleted — or AgentExecutionFailed after
// the failing node's event when the run aborts.
func (a *Agent) Run(ctx context.Context, input any) (any, error) {
	opts := []ContextOption{WithAgentID(a.id)}
	if a.limit > 0 {
		opts = append(opts, WithIterationLimit(a.limit))
	}
	if a.ckpt != nil {
		opts = append(opts, WithCheckpointer(a.ckpt))
	}
	if a.executor != nil {
		opts = append(opts, WithLLM(a.executor))
	}
	if a.tools != nil {
		opts = append(opts, WithTools(tool.NewRunner(a.tools, a.pipe, a.strategy.ToolSelection())))
	}
	rc := NewRunContext(a.pipe, opts...)

	if err := rc.notify(ctx, pipeline.NewAgentStarting(a.id, rc.runID)); err != nil {
		return nil, err
	}
	if err := rc.notify(ctx, pipeline.NewStrategyStarting(rc.runID, a.strategy.name)); err != nil {
		return nil, err
	}

	output, err := a.engine.Run(ctx, a.strategy, rc, input)
	if err != nil {
		if nerr := rc.notify(ctx, pipeline.NewAgentExecutionFailed(a.id, rc.runID, err.Error())); nerr != nil {
			return nil, nerr
		}
		return nil, err
	}

	encoded := encodePayload(output)
	if err := rc.notify(ctx, pipeline.NewStrategyCompleted(rc.runID, a.strategy.name, encoded)); err != nil {
		return nil, err
	}
	if err := rc.notify(ctx, pipeline.NewAgentCompleted(a.id, rc.runID, encoded)); err != nil {
		return nil, err
	}
	return output, nil
}

// Close announces the agent's shutdown to observers. Call it once, after
// the last Run.
func (a *Agent) Close(ctx context.Context) error {
	if a.pipe == nil {
		return nil
	}
	return a.pipe.Notify(ctx, pipeline.NewAgentClosing(a.id))
}
