package database

import (
	"context"
	"database/sql"
)

// Dialect identifies the SQL flavour behind a Database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Database is implemented by each supported driver.
type Database interface {
	// Connection
	Open() error
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sql.DB

	// CreateTables creates the schema if it does not exist yet.
	CreateTables(ctx context.Context) error

	Dialect() Dialect

	// Placeholder returns the driver's nth placeholder (? for SQLite, $N for PostgreSQL).
	Placeholder(index int) string

	// LockSuffix is appended to a SELECT that must hold its rows until the
	// transaction ends. SQLite serialises writers with BEGIN IMMEDIATE instead.
	LockSuffix() string
}

// querier is what *sql.DB and *sql.Tx have in common.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}
