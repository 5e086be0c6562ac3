package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/okian/coachd/internal/domain/chat"
)

// openaiCompletions is the slice of the SDK's chat completion service we call.
type openaiCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements chat.Client over any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	completions openaiCompletions
}

// NewOpenAI builds an OpenAI client from cfg.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{completions: &client.Chat.Completions}
}

// Complete implements chat.Client.
func (o *OpenAI) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	completion, err := o.completions.New(ctx, openaiParams(req))
	if err != nil {
		return chat.Response{}, fmt.Errorf("openai chat completions: %w", err)
	}
	return openaiResponse(completion)
}

func openaiParams(req chat.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(req.Model),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}

	for _, m := range req.Messages {
		if m.Role == chat.RoleAssistant {
			params.Messages = append(params.Messages, openaiAssistant(m))
			continue
		}
		// Tool results become separate tool messages; any text in the same
		// turn follows as one user message.
		var text []string
		for _, b := range m.Blocks {
			switch b.Type {
			case chat.BlockToolResult:
				params.Messages = append(params.Messages, openai.ToolMessage(b.Text, b.ToolUseID))
			case chat.BlockText:
				text = append(text, b.Text)
			}
		}
		if len(text) > 0 {
			params.Messages = append(params.Messages, openai.UserMessage(strings.Join(text, "\n")))
		}
	}

	for _, t := range req.Tools {
		fn := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: openaiParameters(t.InputSchema),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{Function: fn})
	}
	return params
}

func openaiAssistant(m chat.Message) openai.ChatCompletionMessageParamUnion {
	p := openai.ChatCompletionAssistantMessageParam{}
	var text []string
	for _, b := range m.Blocks {
		switch b.Type {
		case chat.BlockText:
			text = append(text, b.Text)
		case chat.BlockToolUse:
			args := string(b.Input)
			if args == "" {
				args = "{}"
			}
			p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: b.ToolUseID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      b.ToolName,
					Arguments: args,
				},
			})
		}
	}
	if joined := strings.Join(text, ""); joined != "" {
		p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(joined),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &p}
}

func openaiParameters(schema map[string]any) shared.FunctionParameters {
	out := make(shared.FunctionParameters, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}

func openaiResponse(completion *openai.ChatCompletion) (chat.Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return chat.Response{}, ErrEmptyChoices
	}
	choice := completion.Choices[0]
	resp := chat.Response{
		Model: completion.Model,
		Usage: chat.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}
	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, chat.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		resp.Blocks = append(resp.Blocks, chat.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	switch choice.FinishReason {
	case "tool_calls":
		resp.StopReason = chat.StopToolUse
	case "length":
		resp.StopReason = chat.StopMaxTokens
	default:
		resp.StopReason = chat.StopEndTurn
	}
	if len(choice.Message.ToolCalls) > 0 {
		resp.StopReason = chat.StopToolUse
	}
	return resp, nil
}
