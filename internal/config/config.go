// Package config defines the service configuration and how it is loaded.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// COACHD_CONFIG, then COACHD_* environment variables. Nested keys use a
// double underscore in env names, e.g. COACHD_LLM__FAST_MODEL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/coachd/internal/domain/engagement"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CronSecret is the bearer token the /cron routes require. Empty rejects
	// every cron request.
	CronSecret string `koanf:"cron_secret"`

	// APIToken is the bearer token the /api routes require. Empty rejects
	// every API request.
	APIToken string `koanf:"api_token"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and workers.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Database   Database   `koanf:"database"`
	LLM        LLM        `koanf:"llm"`
	Engagement Engagement `koanf:"engagement"`
	Assistant  Assistant  `koanf:"assistant"`
	Triage     Triage     `koanf:"triage"`
	Schedule   Schedule   `koanf:"schedule"`
	Metrics    Metrics    `koanf:"metrics"`
}

// Database selects and tunes the store.
type Database struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	Migrate         bool          `koanf:"migrate"`
}

// LLM configures the chat provider and the two model tiers.
type LLM struct {
	Provider       string `koanf:"provider"`
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	FastModel      string `koanf:"fast_model"`
	SmartModel     string `koanf:"smart_model"`
	FastMaxTokens  int    `koanf:"fast_max_tokens"`
	SmartMaxTokens int    `koanf:"smart_max_tokens"`
	MaxRetries     int    `koanf:"max_retries"`
}

// Engagement configures the scoring batch.
type Engagement struct {
	LookbackWeeks int                `koanf:"lookback_weeks"`
	Concurrency   int                `koanf:"concurrency"`
	Weights       engagement.Weights `koanf:"weights"`
}

// Assistant bounds the tool-use loop.
type Assistant struct {
	MaxIterations   int `koanf:"max_iterations"`
	ToolConcurrency int `koanf:"tool_concurrency"`
}

// Triage sizes the asynchronous triage queue.
type Triage struct {
	QueueSize   int           `koanf:"queue_size"`
	WorkerCount int           `koanf:"worker_count"`
	DedupeSize  int           `koanf:"dedupe_size"`
	DedupeTTL   time.Duration `koanf:"dedupe_ttl"`
	JobTimeout  time.Duration `koanf:"job_timeout"`
}

// Schedule holds cron specs for the in-process scheduler. An empty spec
// leaves the job to the external /cron routes.
type Schedule struct {
	Engagement string        `koanf:"engagement"`
	Synthesis  string        `koanf:"synthesis"`
	JobTimeout time.Duration `koanf:"job_timeout"`
}

// Metrics switches Prometheus collection and sets how often the serve
// command samples runtime gauges.
type Metrics struct {
	Enabled         bool          `koanf:"enabled"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		ShutdownTimeout: 15 * time.Second,
		Database: Database{
			Driver:          "sqlite",
			DSN:             "coachd.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		LLM: LLM{
			Provider:       "anthropic",
			FastModel:      "claude-haiku-4-5",
			SmartModel:     "claude-sonnet-4-5",
			FastMaxTokens:  512,
			SmartMaxTokens: 2048,
			MaxRetries:     2,
		},
		Engagement: Engagement{
			LookbackWeeks: 4,
			Concurrency:   8,
			Weights:       engagement.DefaultWeights(),
		},
		Assistant: Assistant{
			MaxIterations:   5,
			ToolConcurrency: 4,
		},
		Triage: Triage{
			QueueSize:   1024,
			WorkerCount: 4,
			DedupeSize:  10_000,
			DedupeTTL:   10 * time.Minute,
			JobTimeout:  2 * time.Minute,
		},
		Schedule: Schedule{
			JobTimeout: 60 * time.Second,
		},
		Metrics: Metrics{
			Enabled:         true,
			RefreshInterval: 10 * time.Second,
		},
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case !oneOf(strings.ToLower(c.LogLevel), "", "debug", "info", "warn", "warning", "error"):
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	case !oneOf(c.Database.Driver, "sqlite", "postgres"):
		return invalid("database.driver %q is not sqlite or postgres", c.Database.Driver)
	case c.Database.DSN == "":
		return invalid("database.dsn must not be empty")
	case !oneOf(c.LLM.Provider, "anthropic", "openai"):
		return invalid("llm.provider %q is not anthropic or openai", c.LLM.Provider)
	case c.LLM.FastModel == "" || c.LLM.SmartModel == "":
		return invalid("llm.fast_model and llm.smart_model must be set")
	case c.LLM.FastMaxTokens <= 0 || c.LLM.SmartMaxTokens <= 0:
		return invalid("llm max tokens must be positive")
	case c.Engagement.LookbackWeeks <= 0:
		return invalid("engagement.lookback_weeks must be positive")
	case c.Engagement.Concurrency <= 0:
		return invalid("engagement.concurrency must be positive")
	case !c.Engagement.Weights.Valid():
		return invalid("engagement.weights must not be negative")
	case c.Assistant.MaxIterations <= 0 || c.Assistant.ToolConcurrency <= 0:
		return invalid("assistant.max_iterations and assistant.tool_concurrency must be positive")
	case c.Triage.QueueSize <= 0 || c.Triage.WorkerCount <= 0:
		return invalid("triage.queue_size and triage.worker_count must be positive")
	case c.Metrics.RefreshInterval <= 0:
		return invalid("metrics.refresh_interval must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
