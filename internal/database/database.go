package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wagerbot/internal/wager"
	"wagerbot/pkg/config"
)

// Store is the SQL-backed wager store. It implements wager.Store plus the
// per-user webhook settings.
type Store struct {
	db  Database
	log *zap.Logger
}

var _ wager.Store = (*Store)(nil)

// Open connects to the configured database and makes sure the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("database")

	var db Database
	switch cfg.Type {
	case "postgres":
		log.Info("initializing postgres database", zap.String("conn", maskPassword(cfg.ConnString)))
		db = NewPostgresDatabase(cfg.ConnString)
	case "sqlite", "":
		log.Info("initializing sqlite database", zap.String("path", cfg.ConnString))
		db = NewSQLiteDatabase(cfg.ConnString)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	if err := db.Open(); err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.SkipTableCreation {
		log.Info("skipping table creation")
	} else if err := db.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("database initialized", zap.String("type", string(db.Dialect())))
	return New(db, log), nil
}

// New wraps an already opened Database.
func New(db Database, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Dialect() Dialect { return s.db.Dialect() }

// conn runs queries written with ? placeholders against either dialect.
type conn struct {
	q  querier
	db Database
}

func (s *Store) reader() conn { return conn{q: s.db.GetDB(), db: s.db} }

// rebind rewrites ? placeholders into the driver's format.
func (c conn) rebind(query string) string {
	if c.db.Dialect() != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(c.db.Placeholder(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// execOne reports whether the statement touched exactly one row.
func (c conn) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// WithTx runs fn in a transaction. SQLite opens it with BEGIN IMMEDIATE;
// PostgreSQL relies on the FOR UPDATE row locks taken inside fn.
func (s *Store) WithTx(ctx context.Context, fn func(wager.Tx) error) (err error) {
	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{conn: conn{q: tx, db: s.db}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// sqlTx implements wager.Tx.
type sqlTx struct {
	conn
}

var _ wager.Tx = (*sqlTx)(nil)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, wager.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
