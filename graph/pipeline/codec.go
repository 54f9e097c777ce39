package pipeline

import (
	"encoding/json"
	"fmt"
)

// Wire format: every event is a single JSON object tagged with a "type"
// field whose value is the event's Kind. The tag selects one of the known
// shapes on decode via a lookup table. Unknown fields are ignored (forward
// compatibility); absent optional fields are omitted rather than encoded as
// null; an unknown tag is a decode error.

// Marshal serializes an event to its tagged wire form.
func Marshal(event Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Kind(), err)
	}
	tag, err := json.Marshal(event.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// Unmarshal decodes a tagged wire record back into its concrete event shape.
// Returns an error for a missing or unknown discriminator.
func Unmarshal(data []byte) (Event, error) {
	var envelope struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("decode event: missing type discriminator")
	}
	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("decode event: unknown type %q", envelope.Type)
	}
	return decode(data)
}

type decoderFunc func(data []byte) (Event, error)

func decodeAs[E Event](data []byte) (Event, error) {
	var event E
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", event.Kind(), err)
	}
	return event, nil
}

var decoders = map[Kind]decoderFunc{
	KindAgentStarting:        decodeAs[AgentStarting],
	KindAgentCompleted:       decodeAs[AgentCompleted],
	KindAgentClosing:         decodeAs[AgentClosing],
	KindAgentExecutionFailed: decodeAs[AgentExecutionFailed],

	KindStrategyStarting:  decodeAs[StrategyStarting],
	KindStrategyCompleted: decodeAs[StrategyCompleted],

	KindNodeExecutionStarting:  decodeAs[NodeExecutionStarting],
	KindNodeExecutionCompleted: decodeAs[NodeExecutionCompleted],
	KindNodeExecutionFailed:    decodeAs[NodeExecutionFailed],

	KindSubgraphExecutionStarting:  decodeAs[SubgraphExecutionStarting],
	KindSubgraphExecutionCompleted: decodeAs[SubgraphExecutionCompleted],
	KindSubgraphExecutionFailed:    decodeAs[SubgraphExecutionFailed],

	KindToolCallStarting:     decodeAs[ToolCallStarting],
	KindToolValidationFailed: decodeAs[ToolValidationFailed],
	KindToolCallFailed:       decodeAs[ToolCallFailed],
	KindToolCallCompleted:    decodeAs[ToolCallCompleted],

	KindLLMCallStarting:  decodeAs[LLMCallStarting],
	KindLLMCallCompleted: decodeAs[LLMCallCompleted],

	KindLLMStreamingStarting:      decodeAs[LLMStreamingStarting],
	KindLLMStreamingFrameReceived: decodeAs[LLMStreamingFrameReceived],
	KindLLMStreamingFailed:        decodeAs[LLMStreamingFailed],
	KindLLMStreamingCompleted:     decodeAs[LLMStreamingCompleted],
}
