package pipeline

import "time"

// Kind is the string discriminator identifying one event shape. The same
// value tags the event on the wire (see codec.go).
type Kind string

// The closed set of lifecycle event kinds.
const (
	KindAgentStarting        Kind = "AgentStarting"
	KindAgentCompleted       Kind = "AgentCompleted"
	KindAgentClosing         Kind = "AgentClosing"
	KindAgentExecutionFailed Kind = "AgentExecutionFailed"

	KindStrategyStarting  Kind = "StrategyStarting"
	KindStrategyCompleted Kind = "StrategyCompleted"

	KindNodeExecutionStarting  Kind = "NodeExecutionStarting"
	KindNodeExecutionCompleted Kind = "NodeExecutionCompleted"
	KindNodeExecutionFailed    Kind = "NodeExecutionFailed"

	KindSubgraphExecutionStarting  Kind = "SubgraphExecutionStarting"
	KindSubgraphExecutionCompleted Kind = "SubgraphExecutionCompleted"
	KindSubgraphExecutionFailed    Kind = "SubgraphExecutionFailed"

	KindToolCallStarting     Kind = "ToolCallStarting"
	KindToolValidationFailed Kind = "ToolValidationFailed"
	KindToolCallFailed       Kind = "ToolCallFailed"
	KindToolCallCompleted    Kind = "ToolCallCompleted"

	KindLLMCallStarting  Kind = "LLMCallStarting"
	KindLLMCallCompleted Kind = "LLMCallCompleted"

	KindLLMStreamingStarting      Kind = "LLMStreamingStarting"
	KindLLMStreamingFrameReceived Kind = "LLMStreamingFrameReceived"
	KindLLMStreamingFailed        Kind = "LLMStreamingFailed"
	KindLLMStreamingCompleted     Kind = "LLMStreamingCompleted"
)

// Kinds returns every known event kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindAgentStarting, KindAgentCompleted, KindAgentClosing, KindAgentExecutionFailed,
		KindStrategyStarting, KindStrategyCompleted,
		KindNodeExecutionStarting, KindNodeExecutionCompleted, KindNodeExecutionFailed,
		KindSubgraphExecutionStarting, KindSubgraphExecutionCompleted, KindSubgraphExecutionFailed,
		KindToolCallStarting, KindToolValidationFailed, KindToolCallFailed, KindToolCallCompleted,
		KindLLMCallStarting, KindLLMCallCompleted,
		KindLLMStreamingStarting, KindLLMStreamingFrameReceived, KindLLMStreamingFailed, KindLLMStreamingCompleted,
	}
}

// Event is one lifecycle transition observed during a run.
//
// Events are immutable value records: they are produced once, timestamped at
// creation, and never mutated after dispatch. Payload-bearing fields (Input,
// Output, ToolArgs, Prompt, ...) carry JSON strings produced when the event
// was created, so a record is self-contained on the wire.
type Event interface {
	// Kind returns the discriminator identifying this event's shape.
	Kind() Kind

	// OccurredAt returns the event's creation timestamp (UTC).
	OccurredAt() time.Time
}

func now() time.Time { return time.Now().UTC() }

// AgentStarting signals that an agent run is about to begin.
type AgentStarting struct {
	AgentID   string    `json:"agentId"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgentStarting(agentID, runID string) AgentStarting {
	return AgentStarting{AgentID: agentID, RunID: runID, Timestamp: now()}
}

func (e AgentStarting) Kind() Kind            { return KindAgentStarting }
func (e AgentStarting) OccurredAt() time.Time { return e.Timestamp }

// AgentCompleted signals that an agent run finished successfully.
// Result is the serialized strategy output, omitted when empty.
type AgentCompleted struct {
	AgentID   string    `json:"agentId"`
	RunID     string    `json:"runId"`
	Result    string    `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgentCompleted(agentID, runID, result string) AgentCompleted {
	return AgentCompleted{AgentID: agentID, RunID: runID, Result: result, Timestamp: now()}
}

func (e AgentCompleted) Kind() Kind            { return KindAgentCompleted }
func (e AgentCompleted) OccurredAt() time.Time { return e.Timestamp }

// AgentClosing signals that an agent is releasing its resources.
type AgentClosing struct {
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgentClosing(agentID string) AgentClosing {
	return AgentClosing{AgentID: agentID, Timestamp: now()}
}

func (e AgentClosing) Kind() Kind            { return KindAgentClosing }
func (e AgentClosing) OccurredAt() time.Time { return e.Timestamp }

// AgentExecutionFailed signals that an agent run aborted with an error.
type AgentExecutionFailed struct {
	AgentID   string    `json:"agentId"`
	RunID     string    `json:"runId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgentExecutionFailed(agentID, runID, errMsg string) AgentExecutionFailed {
	return AgentExecutionFailed{AgentID: agentID, RunID: runID, Error: errMsg, Timestamp: now()}
}

func (e AgentExecutionFailed) Kind() Kind            { return KindAgentExecutionFailed }
func (e AgentExecutionFailed) OccurredAt() time.Time { return e.Timestamp }

// StrategyStarting signals entry into the agent's top-level strategy graph.
type StrategyStarting struct {
	RunID        string    `json:"runId"`
	StrategyName string    `json:"strategyName"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewStrategyStarting(runID, strategyName string) StrategyStarting {
	return StrategyStarting{RunID: runID, StrategyName: strategyName, Timestamp: now()}
}

func (e StrategyStarting) Kind() Kind            { return KindStrategyStarting }
func (e StrategyStarting) OccurredAt() time.Time { return e.Timestamp }

// StrategyCompleted signals that the top-level strategy graph produced its
// final result.
type StrategyCompleted struct {
	RunID        string    `json:"runId"`
	StrategyName string    `json:"strategyName"`
	Result       string    `json:"result,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewStrategyCompleted(runID, strategyName, result string) StrategyCompleted {
	return StrategyCompleted{RunID: runID, StrategyName: strategyName, Result: result, Timestamp: now()}
}

func (e StrategyCompleted) Kind() Kind            { return KindStrategyCompleted }
func (e StrategyCompleted) OccurredAt() time.Time { return e.Timestamp }

// NodeExecutionStarting signals that a node body is about to run.
type NodeExecutionStarting struct {
	RunID     string    `json:"runId"`
	NodeName  string    `json:"nodeName"`
	Input     string    `json:"input,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNodeExecutionStarting(runID, nodeName, input string) NodeExecutionStarting {
	return NodeExecutionStarting{RunID: runID, NodeName: nodeName, Input: input, Timestamp: now()}
}

func (e NodeExecutionStarting) Kind() Kind            { return KindNodeExecutionStarting }
func (e NodeExecutionStarting) OccurredAt() time.Time { return e.Timestamp }

// NodeExecutionCompleted signals that a node body returned successfully.
type NodeExecutionCompleted struct {
	RunID     string    `json:"runId"`
	NodeName  string    `json:"nodeName"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNodeExecutionCompleted(runID, nodeName, input, output string) NodeExecutionCompleted {
	return NodeExecutionCompleted{RunID: runID, NodeName: nodeName, Input: input, Output: output, Timestamp: now()}
}

func (e NodeExecutionCompleted) Kind() Kind            { return KindNodeExecutionCompleted }
func (e NodeExecutionCompleted) OccurredAt() time.Time { return e.Timestamp }

// NodeExecutionFailed signals that a node body returned an error.
type NodeExecutionFailed struct {
	RunID     string    `json:"runId"`
	NodeName  string    `json:"nodeName"`
	Input     string    `json:"input,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNodeExecutionFailed(runID, nodeName, input, errMsg string) NodeExecutionFailed {
	return NodeExecutionFailed{RunID: runID, NodeName: nodeName, Input: input, Error: errMsg, Timestamp: now()}
}

func (e NodeExecutionFailed) Kind() Kind            { return KindNodeExecutionFailed }
func (e NodeExecutionFailed) OccurredAt() time.Time { return e.Timestamp }

// SubgraphExecutionStarting signals entry into a nested subgraph.
type SubgraphExecutionStarting struct {
	RunID        string    `json:"runId"`
	SubgraphName string    `json:"subgraphName"`
	Input        string    `json:"input,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSubgraphExecutionStarting(runID, subgraphName, input string) SubgraphExecutionStarting {
	return SubgraphExecutionStarting{RunID: runID, SubgraphName: subgraphName, Input: input, Timestamp: now()}
}

func (e SubgraphExecutionStarting) Kind() Kind            { return KindSubgraphExecutionStarting }
func (e SubgraphExecutionStarting) OccurredAt() time.Time { return e.Timestamp }

// SubgraphExecutionCompleted signals that a nested subgraph reached Finish.
type SubgraphExecutionCompleted struct {
	RunID        string    `json:"runId"`
	SubgraphName string    `json:"subgraphName"`
	Output       string    `json:"output,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSubgraphExecutionCompleted(runID, subgraphName, output string) SubgraphExecutionCompleted {
	return SubgraphExecutionCompleted{RunID: runID, SubgraphName: subgraphName, Output: output, Timestamp: now()}
}

func (e SubgraphExecutionCompleted) Kind() Kind            { return KindSubgraphExecutionCompleted }
func (e SubgraphExecutionCompleted) OccurredAt() time.Time { return e.Timestamp }

// SubgraphExecutionFailed signals that a nested subgraph aborted.
type SubgraphExecutionFailed struct {
	RunID        string    `json:"runId"`
	SubgraphName string    `json:"subgraphName"`
	Error        string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSubgraphExecutionFailed(runID, subgraphName, errMsg string) SubgraphExecutionFailed {
	return SubgraphExecutionFailed{RunID: runID, SubgraphName: subgraphName, Error: errMsg, Timestamp: now()}
}

func (e SubgraphExecutionFailed) Kind() Kind            { return KindSubgraphExecutionFailed }
func (e SubgraphExecutionFailed) OccurredAt() time.Time { return e.Timestamp }

// ToolCallStarting signals that a tool is about to execute.
type ToolCallStarting struct {
	RunID      string    `json:"runId"`
	ToolCallID string    `json:"toolCallId"`
	ToolName   string    `json:"toolName"`
	ToolArgs   string    `json:"toolArgs,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewToolCallStarting(runID, toolCallID, toolName, toolArgs string) ToolCallStarting {
	return ToolCallStarting{RunID: runID, ToolCallID: toolCallID, ToolName: toolName, ToolArgs: toolArgs, Timestamp: now()}
}

func (e ToolCallStarting) Kind() Kind            { return KindToolCallStarting }
func (e ToolCallStarting) OccurredAt() time.Time { return e.Timestamp }

// ToolValidationFailed signals that a tool's arguments were rejected before
// execution. Distinct from ToolCallFailed so observers can tell "bad input"
// from "tool broke".
type ToolValidationFailed struct {
	RunID      string    `json:"runId"`
	ToolCallID string    `json:"toolCallId"`
	ToolName   string    `json:"toolName"`
	ToolArgs   string    `json:"toolArgs,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewToolValidationFailed(runID, toolCallID, toolName, toolArgs, errMsg string) ToolValidationFailed {
	return ToolValidationFailed{RunID: runID, ToolCallID: toolCallID, ToolName: toolName, ToolArgs: toolArgs, Error: errMsg, Timestamp: now()}
}

func (e ToolValidationFailed) Kind() Kind            { return KindToolValidationFailed }
func (e ToolValidationFailed) OccurredAt() time.Time { return e.Timestamp }

// ToolCallFailed signals that a tool ran and failed.
type ToolCallFailed struct {
	RunID      string    `json:"runId"`
	ToolCallID string    `json:"toolCallId"`
	ToolName   string    `json:"toolName"`
	ToolArgs   string    `json:"toolArgs,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewToolCallFailed(runID, toolCallID, toolName, toolArgs, errMsg string) ToolCallFailed {
	return ToolCallFailed{RunID: runID, ToolCallID: toolCallID, ToolName: toolName, ToolArgs: toolArgs, Error: errMsg, Timestamp: now()}
}

func (e ToolCallFailed) Kind() Kind            { return KindToolCallFailed }
func (e ToolCallFailed) OccurredAt() time.Time { return e.Timestamp }

// ToolCallCompleted signals a successful tool execution.
type ToolCallCompleted struct {
	RunID      string    `json:"runId"`
	ToolCallID string    `json:"toolCallId"`
	ToolName   string    `json:"toolName"`
	ToolArgs   string    `json:"toolArgs,omitempty"`
	Result     string    `json:"result,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewToolCallCompleted(runID, toolCallID, toolName, toolArgs, result string) ToolCallCompleted {
	return ToolCallCompleted{RunID: runID, ToolCallID: toolCallID, ToolName: toolName, ToolArgs: toolArgs, Result: result, Timestamp: now()}
}

func (e ToolCallCompleted) Kind() Kind            { return KindToolCallCompleted }
func (e ToolCallCompleted) OccurredAt() time.Time { return e.Timestamp }

// LLMCallStarting signals that a prompt was sent to a model provider.
type LLMCallStarting struct {
	RunID     string    `json:"runId"`
	CallID    string    `json:"callId"`
	Prompt    string    `json:"prompt,omitempty"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLLMCallStarting(runID, callID, prompt, model string) LLMCallStarting {
	return LLMCallStarting{RunID: runID, CallID: callID, Prompt: prompt, Model: model, Timestamp: now()}
}

func (e LLMCallStarting) Kind() Kind            { return KindLLMCallStarting }
func (e LLMCallStarting) OccurredAt() time.Time { return e.Timestamp }

// LLMCallCompleted carries the provider's responses for a finished call.
type LLMCallCompleted struct {
	RunID     string    `json:"runId"`
	CallID    string    `json:"callId"`
	Prompt    string    `json:"prompt,omitempty"`
	Model     string    `json:"model"`
	Responses []string  `json:"responses,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLLMCallCompleted(runID, callID, prompt, model string, responses []string) LLMCallCompleted {
	return LLMCallCompleted{RunID: runID, CallID: callID, Prompt: prompt, Model: model, Responses: responses, Timestamp: now()}
}

func (e LLMCallCompleted) Kind() Kind            { return KindLLMCallCompleted }
func (e LLMCallCompleted) OccurredAt() time.Time { return e.Timestamp }

// LLMStreamingStarting signals the start of a streaming model call.
type LLMStreamingStarting struct {
	RunID     string    `json:"runId"`
	CallID    string    `json:"callId"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLLMStreamingStarting(runID, callID, model string) LLMStreamingStarting {
	return LLMStreamingStarting{RunID: runID, CallID: callID, Model: model, Timestamp: now()}
}

func (e LLMStreamingStarting) Kind() Kind            { return KindLLMStreamingStarting }
func (e LLMStreamingStarting) OccurredAt() time.Time { return e.Timestamp }

// LLMStreamingFrameReceived carries one frame of streamed model output.
type LLMStreamingFrameReceived struct {
	RunID     string    `json:"runId"`
	CallID    string    `json:"callId"`
	Frame     string    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLLMStreamingFrameReceived(runID, callID, frame string) LLMStreamingFrameReceived {
	return LLMStreamingFrameReceived{RunID: runID, CallID: callID, Frame: frame, Timestamp: now()}
}

func (e LLMStreamingFrameReceived) Kind() Kind            { return KindLLMStreamingFrameReceived }
func (e LLMStreamingFrameReceived) OccurredAt() time.Time { return e.Timestamp }

// LLMStreamingFailed signals that a streaming call aborted mid-stream.
type LLMStreamingFailed struct {
	RunID     string    `json:"runId"`
	CallID    string    `json:"callId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLLMStreamingFailed(runID, callID, errMsg string) LLMStreamingFailed {
	return LLMStreamingFailed{RunID: runID, CallID: callID, Error: errMsg, Timestamp: now()}
}

func (e LLMStreamingFailed) Kind() Kind            { return KindLLMStreamingFailed }
func (e LLMStreamingFailed) OccurredAt() time.Time { return e.Timestamp }

// LLMStreamingCompleted signals that a streaming call drained cleanly.
type LLMStreamingCompleted struct {
	RunID      string    `json:"runId"`
	CallID     string    `json:"callId"`
	FrameCount int       `json:"frameCount,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewLLMStreamingCompleted(runID, callID string, frameCount int) LLMStreamingCompleted {
	return LLMStreamingCompleted{RunID: runID, CallID: callID, FrameCount: frameCount, Timestamp: now()}
}

func (e LLMStreamingCompleted) Kind() Kind            { return KindLLMStreamingCompleted }
func (e LLMStreamingCompleted) OccurredAt() time.Time { return e.Timestamp }
