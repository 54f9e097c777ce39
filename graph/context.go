package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/pipeline"
	"github.com/weavegraph/weave/graph/tool"
)

// DefaultIterationLimit bounds the number of node executions per run unless
// overridden with WithIterationLimit.
const DefaultIterationLimit = 100

// Key identifies a value in the run context's storage. Each feature owns its
// keys; prefix them to avoid collisions, e.g. "memory.summary".
type Key string

// StateManager tracks run progression: how many node executions have
// happened and the budget they must stay under.
type StateManager struct {
	mu         sync.Mutex
	iterations int
	limit      int
}

// NewStateManager creates a StateManager. A non-positive limit uses
// DefaultIterationLimit.
func NewStateManager(limit int) *StateManager {
	if limit <= 0 {
		limit = DefaultIterationLimit
	}
	return &StateManager{limit: limit}
}

// Advance records one node execution. Returns ErrIterationLimit once the
// budget is exhausted.
func (s *StateManager) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iterations >= s.limit {
		return fmt.Errorf("%w (%d)", ErrIterationLimit, s.limit)
	}
	s.iterations++
	return nil
}

// Iterations reports how many node executions have been recorded.
func (s *StateManager) Iterations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterations
}

func (s *StateManager) clone() *StateManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &StateManager{iterations: s.iterations, limit: s.limit}
}

// RunContext carries the mutable state of one workflow run: identifiers,
// the lifecycle pipeline, key-value storage, conversation history, and the
// iteration budget.
//
// A context is mutated only by the node currently executing. Parallel
// composites never share one context across branches: each branch receives
// an independent Fork, and the merge step decides which fork's state the
// parent adopts.
type RunContext struct {
	runID   string
	agentID string
	pipe    *pipeline.Pipeline
	state   *StateManager
	parent  *RunContext
	ckpt    *Checkpointer
	llm     *LLMExecutor
	tools   *tool.Runner

	mu           sync.RWMutex
	storage      map[Key]any
	history      []model.Message
	currentNode  string
	checkpointed bool
}

// ContextOption configures a RunContext.
type ContextOption func(*RunContext)

// WithAgentID sets the agent identifier carried in agent-level events.
func WithAgentID(id string) ContextOption {
	return func(rc *RunContext) { rc.agentID = id }
}

// WithRunID overrides the generated run identifier, for resumed runs.
func WithRunID(id string) ContextOption {
	return func(rc *RunContext) { rc.runID = id }
}

// WithIterationLimit overrides the default node-execution budget.
func WithIterationLimit(limit int) ContextOption {
	return func(rc *RunContext) { rc.state = NewStateManager(limit) }
}

// WithCheckpointer attaches a checkpoint backend to the run.
func WithCheckpointer(c *Checkpointer) ContextOption {
	return func(rc *RunContext) { rc.ckpt = c }
}

// WithLLM attaches the executor node bodies obtain through LLM().
func WithLLM(x *LLMExecutor) ContextOption {
	return func(rc *RunContext) { rc.llm = x }
}

// WithTools attaches the runner node bodies obtain through Tools().
func WithTools(r *tool.Runner) ContextOption {
	return func(rc *RunContext) { rc.tools = r }
}

// NewRunContext creates a context for a fresh run with a generated uuid run
// id. A nil pipeline suppresses event reporting.
func NewRunContext(pipe *pipeline.Pipeline, opts ...ContextOption) *RunContext {
	rc := &RunContext{
		runID:   uuid.NewString(),
		pipe:    pipe,
		state:   NewStateManager(0),
		storage: make(map[Key]any),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// RunID returns the run identifier.
func (rc *RunContext) RunID() string { return rc.runID }

// AgentID returns the owning agent's identifier, empty when the run was
// started outside an Agent.
func (rc *RunContext) AgentID() string { return rc.agentID }

// Pipeline returns the lifecycle pipeline, which may be nil.
func (rc *RunContext) Pipeline() *pipeline.Pipeline { return rc.pipe }

// State returns the run's state manager.
func (rc *RunContext) State() *StateManager { return rc.state }

// LLM returns the run's model executor, nil when none was attached.
func (rc *RunContext) LLM() *LLMExecutor { return rc.llm }

// Tools returns the run's tool runner, nil when none was attached.
func (rc *RunContext) Tools() *tool.Runner { return rc.tools }

// Set stores a value under the key, replacing any existing value.
func (rc *RunContext) Set(key Key, value any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.storage[key] = value
}

// Get retrieves a value. Keys absent from this context are looked up through
// the parent chain, so nested runs see inherited state without owning it.
func (rc *RunContext) Get(key Key) (any, bool) {
	rc.mu.RLock()
	v, ok := rc.storage[key]
	rc.mu.RUnlock()
	if ok {
		return v, true
	}
	if rc.parent != nil {
		return rc.parent.Get(key)
	}
	return nil, false
}

// Delete removes a key from this context's own storage. Inherited values in
// parent contexts are untouched.
func (rc *RunContext) Delete(key Key) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.storage, key)
}

// History returns a copy of the accumulated conversation history.
func (rc *RunContext) History() []model.Message {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([]model.Message, len(rc.history))
	copy(out, rc.history)
	return out
}

// AppendHistory adds messages to the conversation history.
func (rc *RunContext) AppendHistory(messages ...model.Message) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.history = append(rc.history, messages...)
}

// Fork creates an independent copy for one parallel branch: its own storage
// map, history, and iteration counter, with this context as parent for
// inherited lookups. The fork starts with no checkpoint marker.
func (rc *RunContext) Fork() *RunContext {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	storage := make(map[Key]any, len(rc.storage))
	for k, v := range rc.storage {
		storage[k] = v
	}
	history := make([]model.Message, len(rc.history))
	copy(history, rc.history)

	return &RunContext{
		runID:   rc.runID,
		agentID: rc.agentID,
		pipe:    rc.pipe,
		state:   rc.state.clone(),
		parent:  rc,
		ckpt:    rc.ckpt,
		llm:     rc.llm,
		tools:   rc.tools,
		storage: storage,
		history: history,
	}
}

// Checkpoint saves a snapshot of the given payload through the attached
// checkpointer and marks the context as checkpointed. Inside a parallel
// branch the marker makes the subsequent merge fail.
func (rc *RunContext) Checkpoint(ctx context.Context, label string, payload any) error {
	if rc.ckpt == nil {
		return fmt.Errorf("no checkpointer attached to run %s", rc.runID)
	}

	rc.mu.Lock()
	rc.checkpointed = true
	node := rc.currentNode
	rc.mu.Unlock()

	return rc.ckpt.Save(ctx, rc.runID, label, node, payload)
}

// Checkpointed reports whether this context (not its parent) saved a
// checkpoint.
func (rc *RunContext) Checkpointed() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.checkpointed
}

// CurrentNode returns the name of the node currently executing.
func (rc *RunContext) CurrentNode() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.currentNode
}

func (rc *RunContext) setCurrentNode(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.currentNode = name
}

// adopt replaces this context's mutable state with the winning fork's.
// Called only by the merge step.
func (rc *RunContext) adopt(winner *RunContext) {
	winner.mu.RLock()
	storage := make(map[Key]any, len(winner.storage))
	for k, v := range winner.storage {
		storage[k] = v
	}
	history := make([]model.Message, len(winner.history))
	copy(history, winner.history)
	state := winner.state.clone()
	winner.mu.RUnlock()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.storage = storage
	rc.history = history
	rc.state = state
}

// notify dispatches an event to the pipeline. A nil pipeline is a no-op; a
// handler error is returned so the engine can abort the run.
func (rc *RunContext) notify(ctx context.Context, event pipeline.Event) error {
	if rc.pipe == nil {
		return nil
	}
	return rc.pipe.Notify(ctx, event)
}
