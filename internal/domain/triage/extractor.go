package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// TaskWriter persists tasks.
type TaskWriter interface {
	InsertTasks(ctx context.Context, tasks ...model.Task) error
}

// Extractor pulls action items out of text and turns them into tasks.
type Extractor struct {
	store TaskWriter
	llm   chat.Client
	settings
}

// NewExtractor creates an extractor backed by the fast model.
func NewExtractor(store TaskWriter, llm chat.Client, opts ...Option) *Extractor {
	return &Extractor{store: store, llm: llm, settings: newSettings("extractor", opts)}
}

// Extract asks the model for action items. Any failure yields an empty list.
func (e *Extractor) Extract(ctx context.Context, text string) model.ActionItemList {
	if strings.TrimSpace(text) == "" {
		return model.ActionItemList{}
	}
	resp, err := e.llm.Complete(ctx, chat.Request{
		Model:     e.fastModel,
		MaxTokens: e.fastMaxTokens,
		System:    extractPrompt,
		Messages:  []chat.Message{chat.UserText(text)},
	})
	if err != nil {
		e.logger.Warn(ctx, "action extraction fell back after model error", logger.Error(err))
		return model.ActionItemList{}
	}
	items := ParseActionItems(resp.Text())
	metrics.RecordActionItems(len(items))
	return items
}

// ParseActionItems decodes a model reply into action items. Replies without
// a JSON array, or with an array that does not parse, give an empty list.
func ParseActionItems(reply string) model.ActionItemList {
	raw := extractJSONArray(reply)
	if raw == "" {
		return model.ActionItemList{}
	}
	items, err := model.ParseActionItems([]byte(raw))
	if err != nil {
		return model.ActionItemList{}
	}
	return items
}

// Materialize inserts one pending, AI-sourced task per item. clientID may be
// empty. Items are not merged with existing tasks.
func (e *Extractor) Materialize(ctx context.Context, coachID, clientID string, items model.ActionItemList) error {
	if len(items) == 0 {
		return nil
	}
	tasks := make([]model.Task, len(items))
	for n, it := range items {
		tasks[n] = model.Task{
			CoachID:  coachID,
			ClientID: clientID,
			Title:    it.Title,
			Priority: it.Priority,
			Status:   model.TaskPending,
			Source:   model.SourceAIExtracted,
		}
	}
	if err := e.store.InsertTasks(ctx, tasks...); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}
	return nil
}
