package repository

import (
	"strconv"
	"time"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqliteTimeLayout sorts lexically in time order and matches
// strftime('%Y-%m-%dT%H:%M:%fZ').
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

// dialect covers the few places Postgres and SQLite disagree.
type dialect interface {
	name() string
	placeholder(n int) string
	bind(v any) any
}

type postgresDialect struct{}

func (postgresDialect) name() string             { return DriverPostgres }
func (postgresDialect) placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) bind(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

type sqliteDialect struct{}

func (sqliteDialect) name() string           { return DriverSQLite }
func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) bind(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}
