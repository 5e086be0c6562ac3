package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/okian/coachd/internal/domain/chat"
)

// anthropicMessages is the slice of the SDK's message service we call.
type anthropicMessages interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Anthropic implements chat.Client over the Messages API.
type Anthropic struct {
	msgs anthropicMessages
}

// NewAnthropic builds an Anthropic client from cfg.
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Anthropic{msgs: &client.Messages}
}

// Complete implements chat.Client.
func (a *Anthropic) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	params, err := anthropicParams(req)
	if err != nil {
		return chat.Response{}, err
	}
	msg, err := a.msgs.New(ctx, params)
	if err != nil {
		return chat.Response{}, fmt.Errorf("anthropic messages: %w", err)
	}
	return anthropicResponse(msg), nil
}

func anthropicParams(req chat.Request) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(req.Messages)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	for _, m := range req.Messages {
		role := anthropic.MessageParamRoleUser
		if m.Role == chat.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		content := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case chat.BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case chat.BlockToolUse:
				input := b.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				content = append(content, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case chat.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(b.ToolUseID, b.Text, b.IsError))
			}
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{Role: role, Content: content})
	}

	for _, t := range req.Tools {
		schema, err := anthropicSchema(t.InputSchema)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("tool %s schema: %w", t.Name, err)
		}
		tool := anthropic.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return params, nil
}

// anthropicSchema round-trips a JSON Schema map into the SDK's schema param.
func anthropicSchema(raw map[string]any) (anthropic.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return anthropic.ToolInputSchemaParam{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	return schema, nil
}

func anthropicResponse(msg *anthropic.Message) chat.Response {
	resp := chat.Response{
		Model: string(msg.Model),
		Usage: chat.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	for _, b := range msg.Content {
		switch b.Type {
		case "text":
			resp.Blocks = append(resp.Blocks, chat.TextBlock(b.Text))
		case "tool_use":
			input := append(json.RawMessage(nil), b.Input...)
			resp.Blocks = append(resp.Blocks, chat.ToolUseBlock(b.ID, b.Name, input))
		}
	}
	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		resp.StopReason = chat.StopToolUse
	case anthropic.StopReasonMaxTokens:
		resp.StopReason = chat.StopMaxTokens
	default:
		resp.StopReason = chat.StopEndTurn
	}
	return resp
}
