package engagement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/types"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

// Default scorer configuration constants.
const (
	defaultLookbackWeeks = 4
	defaultConcurrency   = 4
	day                  = 24 * time.Hour
)

// Store is the data access the scorer needs.
type Store interface {
	ListAllClients(ctx context.Context) ([]model.Client, error)
	CountReflections(ctx context.Context, clientID string, since, until time.Time) (int, error)
	CountLinkedUpdates(ctx context.Context, clientID string, since, until time.Time) (int, error)
	CountTasksDue(ctx context.Context, clientID string, from, to model.Date) (completed, total int, err error)
	UpdateEngagementScore(ctx context.Context, clientID string, score int) error
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithLookbackWeeks sets the trailing window length.
func WithLookbackWeeks(weeks int) Option {
	return func(s *Scorer) {
		if weeks > 0 {
			s.lookback = time.Duration(weeks) * 7 * day
		}
	}
}

// WithConcurrency bounds how many clients are scored at once.
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock overrides the clock that fixes the window end.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scorer recomputes engagement scores for every client.
type Scorer struct {
	store       Store
	weights     Weights
	lookback    time.Duration
	concurrency int
	now         func() time.Time
	logger      logger.Logger
}

// NewScorer creates a scorer over store.
func NewScorer(store Store, opts ...Option) *Scorer {
	s := &Scorer{
		store:       store,
		weights:     DefaultWeights(),
		lookback:    defaultLookbackWeeks * 7 * day,
		concurrency: defaultConcurrency,
		now:         time.Now,
		logger:      logger.Get().Named("engagement"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecomputeAll scores every client over [now-lookback, now). A failure on one
// client is logged and skipped; only failing to list clients is an error.
func (s *Scorer) RecomputeAll(ctx context.Context) (types.BatchResult, error) {
	start := time.Now()
	clients, err := s.store.ListAllClients(ctx)
	if err != nil {
		metrics.RecordRecompute("error", 0, 0, float64(time.Since(start).Milliseconds()))
		return types.BatchResult{}, fmt.Errorf("list clients: %w", err)
	}

	until := s.now().UTC()
	since := until.Add(-s.lookback)

	var updated atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, c := range clients {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := s.recompute(ctx, c.ID, since, until); err != nil {
				metrics.RecordClientScoreError()
				s.logger.Warn(ctx, "engagement score skipped",
					logger.String("client_id", c.ID),
					logger.Error(err),
				)
				return nil
			}
			metrics.RecordClientScored()
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := types.BatchResult{Updated: int(updated.Load()), Total: len(clients)}
	outcome := "ok"
	if res.Failed() > 0 {
		outcome = "partial"
	}
	metrics.RecordRecompute(outcome, res.Updated, res.Total, float64(time.Since(start).Milliseconds()))
	s.logger.Info(ctx, "engagement recompute finished",
		logger.Int("updated", res.Updated),
		logger.Int("total", res.Total),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (s *Scorer) recompute(ctx context.Context, clientID string, since, until time.Time) error {
	sample, err := s.Sample(ctx, clientID, since, until)
	if err != nil {
		return err
	}
	if err := s.store.UpdateEngagementScore(ctx, clientID, Score(sample, s.weights)); err != nil {
		return fmt.Errorf("write score: %w", err)
	}
	return nil
}

// Sample gathers one client's activity in [since, until). Task due dates are
// calendar days, so the window covers every day from since through until.
func (s *Scorer) Sample(ctx context.Context, clientID string, since, until time.Time) (model.ActivitySample, error) {
	var (
		sample model.ActivitySample
		err    error
	)
	if sample.Reflections, err = s.store.CountReflections(ctx, clientID, since, until); err != nil {
		return sample, fmt.Errorf("count reflections: %w", err)
	}
	if sample.Updates, err = s.store.CountLinkedUpdates(ctx, clientID, since, until); err != nil {
		return sample, fmt.Errorf("count updates: %w", err)
	}
	sample.TasksCompleted, sample.TasksTotal, err = s.store.CountTasksDue(ctx, clientID, model.DateOf(since), model.DateOf(until.Add(day)))
	if err != nil {
		return sample, fmt.Errorf("count tasks: %w", err)
	}
	return sample, nil
}
