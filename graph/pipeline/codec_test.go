package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTripAllShapes(t *testing.T) {
	events := []Event{
		NewAgentStarting("agent-1", "run-1"),
		NewAgentCompleted("agent-1", "run-1", "done"),
		NewAgentClosing("agent-1"),
		NewAgentExecutionFailed("agent-1", "run-1", "boom"),
		NewStrategyStarting("run-1", "assistant"),
		NewStrategyCompleted("run-1", "assistant", "done"),
		NewNodeExecutionStarting("run-1", "echo", `"hello"`),
		NewNodeExecutionCompleted("run-1", "echo", `"hello"`, `"hello"`),
		NewNodeExecutionFailed("run-1", "echo", `"bad"`, "echo exploded"),
		NewSubgraphExecutionStarting("run-1", "review", `"draft"`),
		NewSubgraphExecutionCompleted("run-1", "review", `"approved"`),
		NewSubgraphExecutionFailed("run-1", "review", "review failed"),
		NewToolCallStarting("run-1", "call-1", "search", `{"q":"go"}`),
		NewToolValidationFailed("run-1", "call-1", "search", `{}`, "q is required"),
		NewToolCallFailed("run-1", "call-1", "search", `{"q":"go"}`, "upstream 500"),
		NewToolCallCompleted("run-1", "call-1", "search", `{"q":"go"}`, `{"hits":3}`),
		NewLLMCallStarting("run-1", "call-2", "summarize this", "openai/gpt-4o"),
		NewLLMCallCompleted("run-1", "call-2", "summarize this", "openai/gpt-4o", []string{"summary"}),
		NewLLMStreamingStarting("run-1", "call-3", "openai/gpt-4o"),
		NewLLMStreamingFrameReceived("run-1", "call-3", "chunk"),
		NewLLMStreamingFailed("run-1", "call-3", "stream cut"),
		NewLLMStreamingCompleted("run-1", "call-3", 12),
	}

	if len(events) != len(Kinds()) {
		t.Fatalf("test covers %d shapes, codec knows %d", len(events), len(Kinds()))
	}

	for _, event := range events {
		t.Run(string(event.Kind()), func(t *testing.T) {
			data, err := Marshal(event)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			decoded, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(event, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTripAbsentOptionals(t *testing.T) {
	// Empty result and args must be omitted on the wire, not encoded as
	// null, and still round-trip to an equal record.
	event := NewToolCallCompleted("run-1", "call-1", "noop", "", "")

	data, err := Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("wire form contains null: %s", data)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(event, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalAddsDiscriminator(t *testing.T) {
	data, err := Marshal(NewAgentStarting("agent-1", "run-1"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"type":"AgentStarting"`) {
		t.Errorf("missing discriminator: %s", data)
	}
}

func TestUnmarshalUnknownDiscriminator(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"SomethingNew","runId":"run-1"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown discriminator")
	}
}

func TestUnmarshalMissingDiscriminator(t *testing.T) {
	_, err := Unmarshal([]byte(`{"runId":"run-1"}`))
	if err == nil {
		t.Fatal("expected an error for a missing discriminator")
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data := []byte(`{"type":"AgentClosing","agentId":"agent-1","timestamp":"2026-01-02T03:04:05Z","futureField":42}`)

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	closing, ok := decoded.(AgentClosing)
	if !ok {
		t.Fatalf("expected AgentClosing, got %T", decoded)
	}
	if closing.AgentID != "agent-1" {
		t.Errorf("expected agent-1, got %q", closing.AgentID)
	}
}
