// Package google adapts the Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/weavegraph/weave/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// ChatModel wraps the official generative-ai-go client.
//
// Unlike the other providers the underlying client holds a gRPC connection;
// call Close when the model is no longer needed.
type ChatModel struct {
	client    *genai.Client
	modelName string
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName falls
// back to DefaultModel. The context governs client setup only, not later
// calls.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google: api key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{client: client, modelName: modelName}, nil
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string {
	return "google/" + m.modelName
}

// Close releases the underlying connection.
func (m *ChatModel) Close() error {
	return m.client.Close()
}

// Chat implements model.ChatModel.
//
// System messages become the system instruction. The final user message is
// sent against a chat session primed with the earlier turns, so multi-turn
// histories translate directly.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	gm := m.client.GenerativeModel(m.modelName)

	var history []*genai.Content
	var last string
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		case model.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		default:
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
			last = msg.Content
		}
	}
	if last == "" {
		return model.ChatOut{}, errors.New("google: no user message to send")
	}
	// The final user turn is sent, not replayed as history.
	history = history[:len(history)-1]

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, spec := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  schemaFromMap(spec.Schema),
			}
		}
		gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session := gm.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return model.ChatOut{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.ChatOut{}, errors.New("google: empty response")
	}

	var out model.ChatOut
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out, nil
}

// schemaFromMap converts a JSON Schema fragment to the genai schema type.
// Unsupported constructs are dropped rather than rejected.
func schemaFromMap(src map[string]any) *genai.Schema {
	if src == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := src["type"].(string); ok {
		schema.Type = schemaType(t)
	}
	if d, ok := src["description"].(string); ok {
		schema.Description = d
	}
	if props, ok := src["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				schema.Properties[name] = schemaFromMap(sub)
			}
		}
	}
	if items, ok := src["items"].(map[string]any); ok {
		schema.Items = schemaFromMap(items)
	}
	switch req := src["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	switch en := src["enum"].(type) {
	case []string:
		schema.Enum = en
	case []any:
		for _, e := range en {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	return schema
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
