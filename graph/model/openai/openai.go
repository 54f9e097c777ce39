// Package openai adapts the OpenAI Chat Completions API to model.ChatModel.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/weavegraph/weave/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ChatModel wraps the official openai-go client.
//
// The client is safe for concurrent use, so a single ChatModel can be shared
// across parallel branches of a workflow.
type ChatModel struct {
	client      *openai.Client
	modelName   string
	temperature float64
	maxTokens   int64
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithTemperature sets the sampling temperature (default 0.7).
func WithTemperature(t float64) Option {
	return func(m *ChatModel) { m.temperature = t }
}

// WithMaxTokens caps completion length (default 4096).
func WithMaxTokens(n int64) Option {
	return func(m *ChatModel) { m.maxTokens = n }
}

// NewChatModel creates an OpenAI-backed ChatModel. An empty modelName falls
// back to DefaultModel; an empty apiKey falls back to the SDK's environment
// lookup (OPENAI_API_KEY).
func NewChatModel(apiKey, modelName string, opts ...Option) *ChatModel {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(clientOpts...)
	if modelName == "" {
		modelName = DefaultModel
	}
	m := &ChatModel{
		client:      &client,
		modelName:   modelName,
		temperature: 0.7,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string {
	return "openai/" + m.modelName
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	completion, err := m.client.Chat.Completions.New(ctx, m.buildParams(messages, tools))
	if err != nil {
		return model.ChatOut{}, err
	}
	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: empty completion")
	}

	choice := completion.Choices[0]
	out := model.ChatOut{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: decodeArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

// ChatStream implements model.StreamingChatModel using the SDK's streaming
// completion API. Text deltas are forwarded to onFrame in arrival order.
func (m *ChatModel) ChatStream(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onFrame func(frame string) error) (model.ChatOut, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.buildParams(messages, tools))

	var text strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			text.WriteString(choice.Delta.Content)
			if err := onFrame(choice.Delta.Content); err != nil {
				return model.ChatOut{}, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.ChatOut{}, err
	}
	return model.ChatOut{Text: text.String()}, nil
}

func (m *ChatModel) buildParams(messages []model.Message, tools []model.ToolSpec) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.modelName),
		Messages:            buildMessages(messages),
		Temperature:         openai.Float(m.temperature),
		MaxCompletionTokens: openai.Int(m.maxTokens),
	}
	if len(tools) > 0 {
		toolParams := make([]openai.ChatCompletionToolParam, len(tools))
		for i, spec := range tools {
			toolParams[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters:  spec.Schema,
				},
			}
		}
		params.Tools = toolParams
	}
	return params
}

func buildMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}

func decodeArguments(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		// Preserve malformed arguments for the caller to inspect.
		return map[string]any{"_raw": raw}
	}
	return args
}
