package triage

import (
	"context"
	"strings"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// Classifier assigns one label from the fixed taxonomy to free text.
type Classifier struct {
	llm chat.Client
	settings
}

// NewClassifier creates a classifier backed by the fast model.
func NewClassifier(llm chat.Client, opts ...Option) *Classifier {
	return &Classifier{llm: llm, settings: newSettings("classifier", opts)}
}

// Classify makes one model call and always returns a valid label. Empty text,
// transport errors and unrecognized answers all yield communication.
func (c *Classifier) Classify(ctx context.Context, text string) model.Classification {
	if strings.TrimSpace(text) == "" {
		metrics.RecordClassification(string(model.DefaultClassification), true)
		return model.DefaultClassification
	}

	resp, err := c.llm.Complete(ctx, chat.Request{
		Model:     c.fastModel,
		MaxTokens: c.fastMaxTokens,
		System:    classifyPrompt,
		Messages:  []chat.Message{chat.UserText(text)},
	})
	if err != nil {
		c.logger.Warn(ctx, "classification fell back after model error", logger.Error(err))
		metrics.RecordClassification(string(model.DefaultClassification), true)
		return model.DefaultClassification
	}

	label, ok := model.ParseClassification(resp.Text())
	if !ok {
		c.logger.Debug(ctx, "unrecognized classification", logger.String("answer", resp.Text()))
		metrics.RecordClassification(string(model.DefaultClassification), true)
		return model.DefaultClassification
	}
	metrics.RecordClassification(string(label), false)
	return label
}
