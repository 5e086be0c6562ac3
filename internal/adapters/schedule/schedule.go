// Package schedule runs the periodic batch jobs (engagement recompute, daily
// synthesis) on cron expressions, in UTC.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/coachd/pkg/logger"
)

// Default scheduler configuration constants.
const (
	defaultJobTimeout = 60 * time.Second
)

// ErrInvalidSpec is returned for cron expressions that do not parse.
var ErrInvalidSpec = errors.New("invalid cron spec")

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. A job that is still running when its next
// tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	base    context.Context
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds every run of every job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler. Specs use the standard five fields plus
// descriptors such as @daily and @every 1h.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		timeout: defaultJobTimeout,
		logger:  logger.Get().Named("schedule"),
		entries: make(map[string]cron.EntryID),
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s
}

// Add registers fn under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if spec == "" {
		s.logger.Info(context.Background(), "job disabled", logger.String("job", name))
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("job %s %q: %w: %v", name, spec, ErrInvalidSpec, err)
	}
	s.entries[name] = id
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Next returns the next fire time of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	e := s.cron.Entry(id)
	return e.Next, e.Valid()
}

// Start runs the scheduler until Stop. Jobs inherit ctx values and
// cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", logger.Int("jobs", s.Len()))
}

// Stop stops firing new runs and waits for running ones, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run(name string, fn JobFunc) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error(ctx, "scheduled job failed", logger.String("job", name), logger.Error(err))
		return
	}
	s.logger.Info(ctx, "scheduled job finished",
		logger.String("job", name),
		logger.Duration("took", time.Since(start)),
	)
}
