// Package triage enriches inbound updates with LLM help: classification,
// client inference, action extraction, and the daily synthesis briefing.
//
// Every function is best effort. Malformed model output falls back to a safe
// default instead of surfacing an error, so triage never blocks ingestion.
package triage

import (
	"time"

	"github.com/okian/coachd/pkg/logger"
)

// Default model configuration constants.
const (
	defaultFastModel      = "claude-haiku-4-5"
	defaultSmartModel     = "claude-sonnet-4-5"
	defaultFastMaxTokens  = 512
	defaultSmartMaxTokens = 2048
	summaryRunes          = 500
)

// settings is shared by every triage component.
type settings struct {
	fastModel      string
	smartModel     string
	fastMaxTokens  int
	smartMaxTokens int
	now            func() time.Time
	logger         logger.Logger
}

func newSettings(name string, opts []Option) settings {
	s := settings{
		fastModel:      defaultFastModel,
		smartModel:     defaultSmartModel,
		fastMaxTokens:  defaultFastMaxTokens,
		smartMaxTokens: defaultSmartMaxTokens,
		now:            time.Now,
		logger:         logger.Get().Named(name),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option applies a configuration option to a triage component.
type Option func(*settings)

// WithFastModel sets the model used for classification, inference and extraction.
func WithFastModel(model string, maxTokens int) Option {
	return func(s *settings) {
		if model != "" {
			s.fastModel = model
		}
		if maxTokens > 0 {
			s.fastMaxTokens = maxTokens
		}
	}
}

// WithSmartModel sets the model used for the daily synthesis.
func WithSmartModel(model string, maxTokens int) Option {
	return func(s *settings) {
		if model != "" {
			s.smartModel = model
		}
		if maxTokens > 0 {
			s.smartMaxTokens = maxTokens
		}
	}
}

// WithClock overrides the clock that decides "today".
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
