package repository

import (
	"time"

	"github.com/okian/coachd/pkg/logger"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithDriver selects the database driver: "sqlite" or "postgres".
func WithDriver(driver string) Option {
	return func(s *SQLStore) {
		if driver != "" {
			s.driver = driver
		}
	}
}

// WithDSN sets the connection string. For SQLite this is a file path.
func WithDSN(dsn string) Option {
	return func(s *SQLStore) {
		if dsn != "" {
			s.dsn = dsn
		}
	}
}

// WithPool tunes the connection pool. Ignored for SQLite, which always uses
// a single connection.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(s *SQLStore) {
		if maxOpen > 0 {
			s.maxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			s.maxIdleConns = maxIdle
		}
		if maxLifetime > 0 {
			s.connMaxLifetime = maxLifetime
		}
	}
}

// WithMigrate applies the embedded schema migrations on open.
func WithMigrate(enabled bool) Option {
	return func(s *SQLStore) {
		s.migrate = enabled
	}
}

// WithClock overrides the clock used to stamp created_at on inserts.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
