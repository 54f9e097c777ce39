package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelHandler turns bracketed lifecycle events into OpenTelemetry spans.
//
// Span boundaries follow the event pairs the engine guarantees:
//
//	AgentStarting .......... AgentCompleted / AgentExecutionFailed
//	NodeExecutionStarting .. NodeExecutionCompleted / NodeExecutionFailed
//	ToolCallStarting ....... ToolCallCompleted / ToolCallFailed / ToolValidationFailed
//	LLMCallStarting ........ LLMCallCompleted
//	LLMStreamingStarting ... LLMStreamingCompleted / LLMStreamingFailed
//
// Failure events set the span status to Error and record the error message.
// Correlation ids (run id, tool-call id, model-call id) become span
// attributes so a trace backend can join spans back to the event stream.
//
// The event set has no failure counterpart for LLMCallCompleted, so a
// non-streaming model call that errors never closes its span; the span stays
// open (and its entry retained) until the process exits. Long-lived processes
// tracing flaky providers should prefer the streaming variant, whose
// LLMStreamingFailed event closes the span.
//
// Usage:
//
//	tracer := otel.Tracer("weave")
//	handler := pipeline.NewOTelHandler(tracer)
//	handler.Attach(p)
type OTelHandler struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

const otelOwner OwnerKey = "pipeline.otel"

// NewOTelHandler creates an OTelHandler. A nil tracer uses the global
// provider's "weave" tracer.
func NewOTelHandler(tracer trace.Tracer) *OTelHandler {
	if tracer == nil {
		tracer = otel.Tracer("weave")
	}
	return &OTelHandler{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// Attach installs the handler for every event kind.
func (o *OTelHandler) Attach(p *Pipeline) {
	p.InstallBroadcast(otelOwner, o.Handle)
}

// Handle opens or closes the span matching the event. Unpaired closing
// events (e.g. replayed streams) are ignored. Never returns an error.
func (o *OTelHandler) Handle(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case AgentStarting:
		o.open(ctx, "agent "+e.AgentID, "agent:"+e.RunID,
			attribute.String("agent.id", e.AgentID),
			attribute.String("run.id", e.RunID))
	case AgentCompleted:
		o.close("agent:"+e.RunID, nil)
	case AgentExecutionFailed:
		o.close("agent:"+e.RunID, errors.New(e.Error))

	case NodeExecutionStarting:
		o.open(ctx, "node "+e.NodeName, "node:"+e.RunID+":"+e.NodeName,
			attribute.String("run.id", e.RunID),
			attribute.String("node.name", e.NodeName))
	case NodeExecutionCompleted:
		o.close("node:"+e.RunID+":"+e.NodeName, nil)
	case NodeExecutionFailed:
		o.close("node:"+e.RunID+":"+e.NodeName, errors.New(e.Error))

	case ToolCallStarting:
		o.open(ctx, "tool "+e.ToolName, "tool:"+e.ToolCallID,
			attribute.String("run.id", e.RunID),
			attribute.String("tool.name", e.ToolName),
			attribute.String("tool.call_id", e.ToolCallID))
	case ToolCallCompleted:
		o.close("tool:"+e.ToolCallID, nil)
	case ToolCallFailed:
		o.close("tool:"+e.ToolCallID, errors.New(e.Error))
	case ToolValidationFailed:
		o.close("tool:"+e.ToolCallID, errors.New(e.Error))

	case LLMCallStarting:
		o.open(ctx, "llm "+e.Model, "llm:"+e.CallID,
			attribute.String("run.id", e.RunID),
			attribute.String("llm.model", e.Model),
			attribute.String("llm.call_id", e.CallID))
	case LLMCallCompleted:
		o.close("llm:"+e.CallID, nil)

	case LLMStreamingStarting:
		o.open(ctx, "llm-stream "+e.Model, "llmstream:"+e.CallID,
			attribute.String("run.id", e.RunID),
			attribute.String("llm.model", e.Model),
			attribute.String("llm.call_id", e.CallID))
	case LLMStreamingCompleted:
		o.close("llmstream:"+e.CallID, nil)
	case LLMStreamingFailed:
		o.close("llmstream:"+e.CallID, errors.New(e.Error))
	}
	return nil
}

func (o *OTelHandler) open(ctx context.Context, name, key string, attrs ...attribute.KeyValue) {
	_, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spans[key] = span
}

func (o *OTelHandler) close(key string, failure error) {
	o.mu.Lock()
	span, ok := o.spans[key]
	if ok {
		delete(o.spans, key)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
