// Package anthropic adapts the Anthropic Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/weavegraph/weave/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = string(anthropic.ModelClaude3_5Sonnet20241022)

// ChatModel wraps the official anthropic-sdk-go client.
type ChatModel struct {
	client    *anthropic.Client
	modelName string
	maxTokens int64
}

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithMaxTokens caps completion length (default 4096).
func WithMaxTokens(n int64) Option {
	return func(m *ChatModel) { m.maxTokens = n }
}

// NewChatModel creates an Anthropic-backed ChatModel. An empty modelName
// falls back to DefaultModel; an empty apiKey falls back to the SDK's
// environment lookup (ANTHROPIC_API_KEY).
func NewChatModel(apiKey, modelName string, opts ...Option) *ChatModel {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)
	if modelName == "" {
		modelName = DefaultModel
	}
	m := &ChatModel{
		client:    &client,
		modelName: modelName,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string {
	return "anthropic/" + m.modelName
}

// Chat implements model.ChatModel.
//
// System-role messages are lifted into the request's system prompt; the
// Messages API rejects them inline.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	for _, spec := range tools {
		params.Tools = append(params.Tools, buildTool(spec))
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}

	var out model.ChatOut
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					input = map[string]any{"_raw": string(block.Input)}
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return out, nil
}

func buildTool(spec model.ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{}
	if props, ok := spec.Schema["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := spec.Schema["required"].([]string); ok {
		schema.Required = req
	} else if raw, ok := spec.Schema["required"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	tool := anthropic.ToolUnionParamOfTool(schema, spec.Name)
	if spec.Description != "" {
		tool.OfTool.Description = anthropic.String(spec.Description)
	}
	return tool
}
