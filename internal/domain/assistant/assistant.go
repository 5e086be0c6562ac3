// Package assistant answers a coach's questions by letting the model call
// read-only tools over that coach's data.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// Default orchestrator configuration constants.
const (
	defaultModel           = "claude-sonnet-4-5"
	defaultMaxTokens       = 2048
	defaultMaxIterations   = 5
	defaultToolConcurrency = 4
)

// Orchestrator runs the tool-use loop for one question at a time.
type Orchestrator struct {
	llm             chat.Client
	registry        *Registry
	model           string
	maxTokens       int
	maxIterations   int
	toolConcurrency int
	logger          logger.Logger
}

// Option applies a configuration option to an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the model and its output token limit.
func WithModel(model string, maxTokens int) Option {
	return func(o *Orchestrator) {
		if model != "" {
			o.model = model
		}
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
	}
}

// WithMaxIterations caps the number of model calls per question.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithToolConcurrency bounds how many tools of one turn run at once.
func WithToolConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.toolConcurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator over the given tools.
func NewOrchestrator(llm chat.Client, registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:             llm,
		registry:        registry,
		model:           defaultModel,
		maxTokens:       defaultMaxTokens,
		maxIterations:   defaultMaxIterations,
		toolConcurrency: defaultToolConcurrency,
		logger:          logger.Get().Named("assistant"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run answers message for coachID. The model is called at most maxIterations
// times; if it still wants tools after the last call, FallbackResponse is
// returned without running them. Model errors are returned as is.
func (o *Orchestrator) Run(ctx context.Context, coachID, message string) (string, error) {
	history := []chat.Message{chat.UserText(message)}
	tools := o.registry.Definitions()

	for i := 1; i <= o.maxIterations; i++ {
		resp, err := o.llm.Complete(ctx, chat.Request{
			Model:     o.model,
			MaxTokens: o.maxTokens,
			System:    systemPrompt,
			Tools:     tools,
			Messages:  history,
		})
		if err != nil {
			metrics.RecordAssistantRun("error", i)
			return "", fmt.Errorf("assistant turn %d: %w", i, err)
		}

		uses := resp.ToolUses()
		if resp.StopReason != chat.StopToolUse || len(uses) == 0 {
			metrics.RecordAssistantRun("answered", i)
			return strings.TrimSpace(resp.Text()), nil
		}
		if i == o.maxIterations {
			break
		}

		results := o.execute(ctx, coachID, uses)
		history = appendTurn(history, resp.Message())
		history = appendTurn(history, chat.Message{Role: chat.RoleUser, Blocks: results})
	}

	o.logger.Warn(ctx, "assistant ran out of iterations",
		logger.String("coach_id", coachID),
		logger.Int("max_iterations", o.maxIterations),
	)
	metrics.RecordAssistantRun("exhausted", o.maxIterations)
	return FallbackResponse, nil
}

// execute runs every tool_use block concurrently and returns the results in
// request order. Failures become error results.
func (o *Orchestrator) execute(ctx context.Context, coachID string, uses []chat.Block) []chat.Block {
	results := make([]chat.Block, len(uses))
	var g errgroup.Group
	g.SetLimit(o.toolConcurrency)

	for n, use := range uses {
		g.Go(func() error {
			out, err := o.registry.Call(ctx, coachID, use.ToolName, use.Input)
			if err != nil {
				o.logger.Debug(ctx, "tool failed",
					logger.String("tool", use.ToolName),
					logger.Error(err),
				)
				metrics.RecordAssistantToolCall(use.ToolName, "error")
				results[n] = chat.ToolResultBlock(use.ToolUseID, errorJSON(err), true)
				return nil
			}
			metrics.RecordAssistantToolCall(use.ToolName, "ok")
			results[n] = chat.ToolResultBlock(use.ToolUseID, out, false)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// appendTurn returns a new history with m appended; earlier slices are never
// written through.
func appendTurn(history []chat.Message, m chat.Message) []chat.Message {
	out := make([]chat.Message, len(history), len(history)+1)
	copy(out, history)
	return append(out, m)
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
