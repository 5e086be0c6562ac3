// Package service assembles the store, the model client and the domain
// components, and runs the triage workers and in-process schedules.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/coachd/internal/adapters/llm"
	"github.com/okian/coachd/internal/adapters/mq/queue"
	"github.com/okian/coachd/internal/adapters/mq/worker"
	"github.com/okian/coachd/internal/adapters/repository"
	"github.com/okian/coachd/internal/adapters/schedule"
	"github.com/okian/coachd/internal/config"
	"github.com/okian/coachd/internal/domain/assistant"
	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/dedupe"
	"github.com/okian/coachd/internal/domain/engagement"
	"github.com/okian/coachd/internal/domain/triage"
	"github.com/okian/coachd/internal/seed"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// Scheduled job names.
const (
	JobEngagement = "engagement"
	JobSynthesis  = "synthesis"
)

// LLM operation labels used in metrics.
const (
	opClassify  = "classify"
	opInfer     = "infer_client"
	opExtract   = "extract_actions"
	opSynthesis = "synthesis"
	opAssistant = "assistant"
)

// ErrNotInitialized is returned by accessors used before Init.
var ErrNotInitialized = errors.New("service not initialized")

// Store is everything the domain components read and write.
type Store interface {
	engagement.Store
	triage.SynthesisStore
	triage.UpdateStore
	triage.TaskWriter
	assistant.Store
	seed.Store
	Ping(ctx context.Context) error
	Close() error
}

// Service owns the long-lived components of one coachd process.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	store     Store
	ownsStore bool
	llm       chat.Client
	now       func() time.Time

	scorer      *engagement.Scorer
	synthesizer *triage.Synthesizer
	pipeline    *triage.Pipeline
	assistant   *assistant.Orchestrator
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	pool        *worker.Pool
	scheduler   *schedule.Scheduler

	built   bool
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses st instead of opening the configured database. The caller
// keeps ownership and closes it.
func WithStore(st Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithLLM uses c instead of the configured provider.
func WithLLM(c chat.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.llm = c
		}
	}
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the store and builds the components without starting any
// background work. One-shot commands stop here.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Service) initLocked(ctx context.Context) (err error) {
	if s.built {
		return nil
	}
	cfg := s.cfg

	if s.store == nil {
		st, openErr := repository.Open(ctx,
			repository.WithDriver(cfg.Database.Driver),
			repository.WithDSN(cfg.Database.DSN),
			repository.WithPool(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime),
			repository.WithMigrate(cfg.Database.Migrate),
			repository.WithClock(s.now),
		)
		if openErr != nil {
			return fmt.Errorf("open store: %w", openErr)
		}
		s.store = st
		s.ownsStore = true
		defer func() {
			if err != nil {
				_ = st.Close()
				s.store, s.ownsStore = nil, false
			}
		}()
	}

	if s.llm == nil {
		c, err := llm.New(llm.Config{
			Provider:   cfg.LLM.Provider,
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			MaxRetries: cfg.LLM.MaxRetries,
		})
		switch {
		case errors.Is(err, llm.ErrMissingAPIKey):
			s.logger.Warn(ctx, "no llm api key configured; model-backed features will fail",
				logger.String("provider", cfg.LLM.Provider))
			c = unavailable(err)
		case err != nil:
			return fmt.Errorf("llm client: %w", err)
		}
		s.llm = c
	}

	s.scorer = engagement.NewScorer(s.store,
		engagement.WithWeights(cfg.Engagement.Weights),
		engagement.WithLookbackWeeks(cfg.Engagement.LookbackWeeks),
		engagement.WithConcurrency(cfg.Engagement.Concurrency),
		engagement.WithClock(s.now),
		engagement.WithLogger(s.logger.Named("engagement")),
	)

	topts := []triage.Option{
		triage.WithFastModel(cfg.LLM.FastModel, cfg.LLM.FastMaxTokens),
		triage.WithSmartModel(cfg.LLM.SmartModel, cfg.LLM.SmartMaxTokens),
		triage.WithClock(s.now),
		triage.WithLogger(s.logger.Named("triage")),
	}
	classifier := triage.NewClassifier(llm.Instrument(s.llm, opClassify), topts...)
	inferrer := triage.NewInferrer(s.store, llm.Instrument(s.llm, opInfer), topts...)
	extractor := triage.NewExtractor(s.store, llm.Instrument(s.llm, opExtract), topts...)
	s.synthesizer = triage.NewSynthesizer(s.store, llm.Instrument(s.llm, opSynthesis), topts...)
	s.pipeline = triage.NewPipeline(s.store, classifier, inferrer, extractor, topts...)

	tools, err := assistant.NewCoachTools(s.store, s.now)
	if err != nil {
		return fmt.Errorf("assistant tools: %w", err)
	}
	s.assistant = assistant.NewOrchestrator(llm.Instrument(s.llm, opAssistant), tools,
		assistant.WithModel(cfg.LLM.SmartModel, cfg.LLM.SmartMaxTokens),
		assistant.WithMaxIterations(cfg.Assistant.MaxIterations),
		assistant.WithToolConcurrency(cfg.Assistant.ToolConcurrency),
		assistant.WithLogger(s.logger.Named("assistant")),
	)

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(cfg.Triage.DedupeSize),
		dedupe.WithTTL(cfg.Triage.DedupeTTL),
		dedupe.WithClock(s.now),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.Triage.QueueSize))
	s.pool = worker.NewPool(cfg.Triage.WorkerCount, s.queue, s.pipeline,
		worker.WithJobTimeout(cfg.Triage.JobTimeout),
		worker.WithReleaser(s.deduper),
		worker.WithLogger(s.logger.Named("worker")),
	)

	s.scheduler = schedule.New(
		schedule.WithJobTimeout(cfg.Schedule.JobTimeout),
		schedule.WithLogger(s.logger.Named("schedule")),
	)
	if err := s.scheduler.Add(JobEngagement, cfg.Schedule.Engagement, func(ctx context.Context) error {
		_, err := s.scorer.RecomputeAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobEngagement, err)
	}
	if err := s.scheduler.Add(JobSynthesis, cfg.Schedule.Synthesis, func(ctx context.Context) error {
		_, err := s.synthesizer.SynthesizeAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobSynthesis, err)
	}

	s.built = true
	return nil
}

// Start initializes the components if needed and starts the triage
// workers and the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.initLocked(ctx); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting coachd service...")
	s.pool.Start(ctx)
	s.scheduler.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "coachd service started",
		logger.Int("workers", s.cfg.Triage.WorkerCount),
		logger.Int("queueSize", s.cfg.Triage.QueueSize),
		logger.Int("dedupeSize", s.cfg.Triage.DedupeSize),
		logger.Int("scheduledJobs", s.scheduler.Len()),
	)
	return nil
}

// Stop drains the workers, stops the scheduler and closes an owned store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		return nil
	}

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping coachd service...")
		if err := s.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		s.started = false
	} else {
		_ = s.queue.Close()
	}

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.store, s.ownsStore = nil, false
	}
	s.built = false
	s.logger.Info(ctx, "coachd service stopped")
	return errors.Join(errs...)
}

// Store returns the data store.
func (s *Service) Store() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Scorer returns the engagement scorer.
func (s *Service) Scorer() *engagement.Scorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scorer
}

// Synthesizer returns the daily synthesis writer.
func (s *Service) Synthesizer() *triage.Synthesizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synthesizer
}

// Pipeline returns the synchronous triage pipeline.
func (s *Service) Pipeline() *triage.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// Assistant returns the coach assistant.
func (s *Service) Assistant() *assistant.Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assistant
}

// Deduper returns the triage request deduper.
func (s *Service) Deduper() dedupe.Deduper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper
}

// Queue returns the triage queue.
func (s *Service) Queue() *queue.InMemoryQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	st := s.Store()
	if st == nil {
		return ErrNotInitialized
	}
	return st.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.Triage.WorkerCount,
		"queueSize":   s.cfg.Triage.QueueSize,
		"dedupeSize":  s.cfg.Triage.DedupeSize,
		"llmProvider": s.cfg.LLM.Provider,
		"dbDriver":    s.cfg.Database.Driver,
	}

	if s.built {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		stats["scheduledJobs"] = s.scheduler.Len()
		for _, name := range []string{JobEngagement, JobSynthesis} {
			if next, ok := s.scheduler.Next(name); ok {
				stats["next_"+name] = next.UTC().Format(time.RFC3339)
			}
		}

		metrics.UpdateQueueSize(queueLen)
		if s.cfg.Triage.QueueSize > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(s.cfg.Triage.QueueSize))
		}
	}

	return stats
}

// unavailable returns a client that fails every call with err.
func unavailable(err error) chat.Client {
	return chat.ClientFunc(func(context.Context, chat.Request) (chat.Response, error) {
		return chat.Response{}, err
	})
}
