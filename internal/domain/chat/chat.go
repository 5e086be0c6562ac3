// Package chat defines the chat-completion contract the triage and assistant
// components speak. Provider adapters translate it to their wire formats.
package chat

import (
	"context"
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags a content block.
type BlockType string

// Block types.
const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one piece of message content. Which fields are set depends on Type:
// text uses Text; tool_use uses ToolUseID, ToolName and Input; tool_result
// uses ToolUseID, Text and IsError.
type Block struct {
	Type      BlockType
	Text      string
	ToolUseID string
	ToolName  string
	Input     json.RawMessage
	IsError   bool
}

// TextBlock builds a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool request block.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// ToolResultBlock builds a tool result block.
func ToolResultBlock(id, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: id, Text: content, IsError: isError}
}

// Message is one conversation turn.
type Message struct {
	Role   Role
	Blocks []Block
}

// UserText builds a single-text user turn.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// Tool describes a function the model may call. InputSchema is a JSON Schema
// object.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is a single completion call.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Tools     []Tool
	Messages  []Message
}

// StopReason explains why the model stopped generating.
type StopReason string

// Stop reasons.
const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Usage counts tokens for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the model's turn.
type Response struct {
	StopReason StopReason
	Blocks     []Block
	Model      string
	Usage      Usage
}

// Text concatenates the text blocks of the response.
func (r Response) Text() string {
	var b strings.Builder
	for _, blk := range r.Blocks {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool_use blocks in order.
func (r Response) ToolUses() []Block {
	var out []Block
	for _, blk := range r.Blocks {
		if blk.Type == BlockToolUse {
			out = append(out, blk)
		}
	}
	return out
}

// Message returns the response as an assistant turn for the history.
func (r Response) Message() Message {
	blocks := make([]Block, len(r.Blocks))
	copy(blocks, r.Blocks)
	return Message{Role: RoleAssistant, Blocks: blocks}
}

// Client performs chat completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
