// Package repository is the data-access collaborator: generic parameterized
// table operations over database/sql plus typed per-table methods built on
// them. Postgres is reached through pgx, local and test stores use SQLite.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/coachd/pkg/logger"
)

// Default pool configuration constants.
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	pingTimeout            = 10 * time.Second
)

// Table names.
const (
	tableClients     = "clients"
	tableReflections = "reflections"
	tableUpdates     = "telegram_updates"
	tableTasks       = "tasks"
	tableSyntheses   = "daily_syntheses"
	tableContacts    = "contacts"
	tableNotes       = "session_notes"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLStore implements the typed store interfaces the domain packages declare.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	driver          string
	dsn             string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	migrate         bool

	now    func() time.Time
	logger logger.Logger
}

// Open connects to the configured database and, if enabled, applies the
// embedded migrations.
func Open(ctx context.Context, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		driver:          DriverSQLite,
		dsn:             "coachd.db",
		maxOpenConns:    defaultMaxOpenConns,
		maxIdleConns:    defaultMaxIdleConns,
		connMaxLifetime: defaultConnMaxLifetime,
		now:             time.Now,
		logger:          logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	switch s.driver {
	case DriverSQLite:
		s.dialect = sqliteDialect{}
		s.db, err = sql.Open("sqlite", sqliteDSN(s.dsn))
		if err == nil {
			s.db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		s.dialect = postgresDialect{}
		s.db, err = sql.Open("pgx", s.dsn)
		if err == nil {
			s.db.SetMaxOpenConns(s.maxOpenConns)
			s.db.SetMaxIdleConns(s.maxIdleConns)
			s.db.SetConnMaxLifetime(s.connMaxLifetime)
		}
	default:
		return nil, fmt.Errorf("open %q: %w", s.driver, ErrUnsupportedDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if s.migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.db.Close()
			return nil, err
		}
	}

	s.logger.Info(ctx, "database ready", logger.String("driver", s.driver), logger.Bool("migrated", s.migrate))
	return s, nil
}

// sqliteDSN appends WAL and busy-timeout pragmas unless the caller set them.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Migrate applies pending embedded migrations. Only the local SQLite schema
// is owned here; the hosted Postgres schema is managed by the platform.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.driver != DriverSQLite {
		s.logger.Warn(ctx, "skipping migrations, schema is managed externally", logger.String("driver", s.driver))
		return nil
	}
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, sub)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info(ctx, "migration applied",
			logger.String("source", r.Source.Path),
			logger.Duration("took", r.Duration),
		)
	}
	return nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// timeValue scans timestamps that arrive as time.Time (Postgres) or text (SQLite).
type timeValue struct{ t *time.Time }

func (v timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*v.t = time.Time{}
	case time.Time:
		*v.t = x.UTC()
	case string:
		return v.parse(x)
	case []byte:
		return v.parse(string(x))
	default:
		return fmt.Errorf("scan time from %T", src)
	}
	return nil
}

func (v timeValue) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}
