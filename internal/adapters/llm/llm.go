// Package llm adapts hosted model APIs to the chat.Client contract.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const defaultMaxRetries = 2

// Config selects and authenticates a provider.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// New builds the client for cfg.Provider.
func New(cfg Config) (chat.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm %s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("llm provider %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}

// instrumented records metrics and debug logs around every completion.
type instrumented struct {
	next      chat.Client
	operation string
	logger    logger.Logger
}

// Instrument wraps c so every call is counted under the given operation label.
func Instrument(c chat.Client, operation string) chat.Client {
	return &instrumented{
		next:      c,
		operation: operation,
		logger:    logger.Get().Named("llm"),
	}
}

func (i *instrumented) Complete(ctx context.Context, req chat.Request) (chat.Response, error) {
	start := time.Now()
	resp, err := i.next.Complete(ctx, req)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordLLMRequest(i.operation, req.Model, "error", latency)
		metrics.RecordErrorByComponent("llm", i.operation)
		i.logger.Warn(ctx, "completion failed",
			logger.String("operation", i.operation),
			logger.String("model", req.Model),
			logger.Error(err),
		)
		return chat.Response{}, err
	}

	metrics.RecordLLMRequest(i.operation, req.Model, "ok", latency)
	metrics.RecordLLMTokens(req.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	i.logger.Debug(ctx, "completion",
		logger.String("operation", i.operation),
		logger.String("model", req.Model),
		logger.String("stop_reason", string(resp.StopReason)),
		logger.Float64("latency_ms", latency),
	)
	return resp, nil
}
