package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/pipeline"
)

// LLMExecutor runs chat-model calls on behalf of node bodies, bracketing
// each call with lifecycle events and accumulating the conversation in the
// run context's history.
//
// Node bodies use the executor instead of calling a ChatModel directly so
// observers see LLMCallStarting/LLMCallCompleted (or the streaming variants)
// with a shared uuid call id.
type LLMExecutor struct {
	chat model.ChatModel
}

// NewLLMExecutor creates an executor around the run's default model.
func NewLLMExecutor(chat model.ChatModel) *LLMExecutor {
	return &LLMExecutor{chat: chat}
}

// Model returns the executor's default chat model.
func (x *LLMExecutor) Model() model.ChatModel { return x.chat }

// Execute sends the prompt as a user turn on top of the context's history
// and records both the prompt and the response in the history.
//
// sub may carry a model override; pass nil to use the executor's default.
func (x *LLMExecutor) Execute(ctx context.Context, rc *RunContext, sub *Subgraph, prompt string, tools []model.ToolSpec) (model.ChatOut, error) {
	chat := x.resolve(sub)
	if chat == nil {
		return model.ChatOut{}, fmt.Errorf("no chat model configured")
	}

	callID := uuid.NewString()
	if err := rc.notify(ctx, pipeline.NewLLMCallStarting(rc.runID, callID, prompt, chat.Name())); err != nil {
		return model.ChatOut{}, err
	}

	messages := append(rc.History(), model.Message{Role: model.RoleUser, Content: prompt})
	out, err := chat.Chat(ctx, messages, tools)
	if err != nil {
		return model.ChatOut{}, err
	}

	rc.AppendHistory(
		model.Message{Role: model.RoleUser, Content: prompt},
		model.Message{Role: model.RoleAssistant, Content: out.Text},
	)

	if err := rc.notify(ctx, pipeline.NewLLMCallCompleted(rc.runID, callID, prompt, chat.Name(), []string{out.Text})); err != nil {
		return model.ChatOut{}, err
	}
	return out, nil
}

// ExecuteStreaming is Execute over a streaming model: every received frame
// is dispatched as LLMStreamingFrameReceived before the final
// LLMStreamingCompleted carries the frame count. Models that cannot stream
// are rejected.
func (x *LLMExecutor) ExecuteStreaming(ctx context.Context, rc *RunContext, sub *Subgraph, prompt string, tools []model.ToolSpec) (model.ChatOut, error) {
	chat := x.resolve(sub)
	if chat == nil {
		return model.ChatOut{}, fmt.Errorf("no chat model configured")
	}
	streamer, ok := chat.(model.StreamingChatModel)
	if !ok {
		return model.ChatOut{}, fmt.Errorf("model %q does not support streaming", chat.Name())
	}

	callID := uuid.NewString()
	if err := rc.notify(ctx, pipeline.NewLLMStreamingStarting(rc.runID, callID, chat.Name())); err != nil {
		return model.ChatOut{}, err
	}

	frames := 0
	messages := append(rc.History(), model.Message{Role: model.RoleUser, Content: prompt})
	out, err := streamer.ChatStream(ctx, messages, tools, func(frame string) error {
		frames++
		return rc.notify(ctx, pipeline.NewLLMStreamingFrameReceived(rc.runID, callID, frame))
	})
	if err != nil {
		if nerr := rc.notify(ctx, pipeline.NewLLMStreamingFailed(rc.runID, callID, err.Error())); nerr != nil {
			return model.ChatOut{}, nerr
		}
		return model.ChatOut{}, err
	}

	rc.AppendHistory(
		model.Message{Role: model.RoleUser, Content: prompt},
		model.Message{Role: model.RoleAssistant, Content: out.Text},
	)

	if err := rc.notify(ctx, pipeline.NewLLMStreamingCompleted(rc.runID, callID, frames)); err != nil {
		return model.ChatOut{}, err
	}
	return out, nil
}

func (x *LLMExecutor) resolve(sub *Subgraph) model.ChatModel {
	if sub != nil && sub.modelOverride != nil {
		return sub.modelOverride
	}
	return x.chat
}
