// Package seed generates demo coaching data: coaches with clients, contacts,
// session notes, check-ins, inbound updates and tasks spread over the last
// few days.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/pkg/logger"
)

// Default generation sizes.
const (
	defaultCoaches         = 2
	defaultClientsPerCoach = 5
	defaultDays            = 14
	defaultSeed            = 42
)

// Store receives the generated rows.
type Store interface {
	InsertClients(ctx context.Context, clients ...model.Client) error
	InsertContacts(ctx context.Context, contacts ...model.Contact) error
	InsertNotes(ctx context.Context, notes ...model.SessionNote) error
	InsertReflections(ctx context.Context, refs ...model.Reflection) error
	InsertUpdates(ctx context.Context, updates ...model.Update) error
	InsertTasks(ctx context.Context, tasks ...model.Task) error
}

// Config holds generation settings.
type Config struct {
	Coaches         int       // number of coach ids
	ClientsPerCoach int       // clients per coach
	Days            int       // how far back activity goes
	Seed            uint64    // PRNG seed; equal seeds give equal data
	Now             time.Time // end of the activity window
}

// Option applies a configuration option to Config.
type Option func(*Config)

// WithCoaches sets the number of coaches.
func WithCoaches(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Coaches = n
		}
	}
}

// WithClientsPerCoach sets how many clients each coach gets.
func WithClientsPerCoach(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ClientsPerCoach = n
		}
	}
}

// WithDays sets the activity window length.
func WithDays(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Days = n
		}
	}
}

// WithSeed fixes the PRNG seed.
func WithSeed(s uint64) Option {
	return func(c *Config) { c.Seed = s }
}

// WithNow sets the end of the activity window.
func WithNow(t time.Time) Option {
	return func(c *Config) {
		if !t.IsZero() {
			c.Now = t
		}
	}
}

// Stats counts what Run inserted.
type Stats struct {
	CoachIDs    []string      `json:"coach_ids"`
	Clients     int           `json:"clients"`
	Contacts    int           `json:"contacts"`
	Notes       int           `json:"notes"`
	Reflections int           `json:"reflections"`
	Updates     int           `json:"updates"`
	Tasks       int           `json:"tasks"`
	Duration    time.Duration `json:"duration_ns"`
}

// Run generates the data set and writes it table by table.
func Run(ctx context.Context, store Store, opts ...Option) (Stats, error) {
	cfg := Config{
		Coaches:         defaultCoaches,
		ClientsPerCoach: defaultClientsPerCoach,
		Days:            defaultDays,
		Seed:            defaultSeed,
		Now:             time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	ds := generate(cfg)
	stats := Stats{
		CoachIDs:    ds.coachIDs,
		Clients:     len(ds.clients),
		Contacts:    len(ds.contacts),
		Notes:       len(ds.notes),
		Reflections: len(ds.reflections),
		Updates:     len(ds.updates),
		Tasks:       len(ds.tasks),
	}

	logger.Get().Info(ctx, "seeding demo data",
		logger.Int("coaches", cfg.Coaches),
		logger.Int("clients", stats.Clients),
		logger.Int("days", cfg.Days))

	steps := []struct {
		table string
		fn    func() error
	}{
		{"clients", func() error { return store.InsertClients(ctx, ds.clients...) }},
		{"contacts", func() error { return store.InsertContacts(ctx, ds.contacts...) }},
		{"session_notes", func() error { return store.InsertNotes(ctx, ds.notes...) }},
		{"reflections", func() error { return store.InsertReflections(ctx, ds.reflections...) }},
		{"telegram_updates", func() error { return store.InsertUpdates(ctx, ds.updates...) }},
		{"tasks", func() error { return store.InsertTasks(ctx, ds.tasks...) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return stats, fmt.Errorf("seed %s: %w", step.table, err)
		}
	}

	stats.Duration = time.Since(start)
	logger.Get().Info(ctx, "demo data seeded",
		logger.Int("updates", stats.Updates),
		logger.Int("tasks", stats.Tasks),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}
