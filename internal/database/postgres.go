package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDatabase implements Database for PostgreSQL through pgx.
type PostgresDatabase struct {
	connString string
	db         *sql.DB
}

func NewPostgresDatabase(connString string) *PostgresDatabase {
	return &PostgresDatabase{connString: connString}
}

// Open connects to the database.
func (p *PostgresDatabase) Open() error {
	// pgx rather than pq: it copes with poolers such as pgbouncer
	db, err := sql.Open("pgx", p.connString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	p.db = db
	return nil
}

// maskPassword hides the password in a connection string for logging.
func maskPassword(connString string) string {
	if idx := strings.Index(connString, "://"); idx >= 0 {
		start := idx + 3
		if at := strings.Index(connString[start:], "@"); at >= 0 {
			userPass := connString[start : start+at]
			if colon := strings.Index(userPass, ":"); colon >= 0 {
				return connString[:start] + userPass[:colon] + ":****@" + connString[start+at+1:]
			}
		}
		return connString
	}

	// key=value form
	fields := strings.Fields(connString)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}

func (p *PostgresDatabase) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresDatabase) Ping(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("database not connected")
	}
	return p.db.PingContext(ctx)
}

func (p *PostgresDatabase) GetDB() *sql.DB { return p.db }

func (p *PostgresDatabase) Dialect() Dialect { return DialectPostgres }

// Placeholder returns $N (1-indexed).
func (p *PostgresDatabase) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (p *PostgresDatabase) LockSuffix() string { return " FOR UPDATE" }

// CreateTables creates the PostgreSQL schema.
func (p *PostgresDatabase) CreateTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			total_wagers INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			total_staked NUMERIC(20,2) NOT NULL DEFAULT 0,
			total_returned NUMERIC(20,2) NOT NULL DEFAULT 0,
			total_lost NUMERIC(20,2) NOT NULL DEFAULT 0,
			net_profit NUMERIC(20,2) NOT NULL DEFAULT 0,
			webhook_url TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wagers (
			id BIGSERIAL PRIMARY KEY,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			base_amount NUMERIC(20,2) NOT NULL,
			side_a_description TEXT NOT NULL,
			side_a_odds NUMERIC(12,4) NOT NULL,
			side_a_user_id TEXT,
			side_a_stake NUMERIC(20,2) NOT NULL,
			side_a_to_win NUMERIC(20,2) NOT NULL,
			side_b_description TEXT NOT NULL,
			side_b_odds NUMERIC(12,4) NOT NULL,
			side_b_user_id TEXT,
			side_b_stake NUMERIC(20,2) NOT NULL,
			side_b_to_win NUMERIC(20,2) NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			winning_side TEXT,
			creator_id TEXT NOT NULL,
			external_ref TEXT,
			channel_id TEXT NOT NULL DEFAULT '',
			home_team TEXT NOT NULL DEFAULT '',
			away_team TEXT NOT NULL DEFAULT '',
			player_name TEXT NOT NULL DEFAULT '',
			other_details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			activated_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS consensus_requests (
			id TEXT PRIMARY KEY,
			wager_id BIGINT NOT NULL REFERENCES wagers(id),
			kind TEXT NOT NULL,
			proposed_winner TEXT,
			proposer_id TEXT NOT NULL,
			side_a_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			side_b_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			external_ref TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS consensus_votes (
			wager_id BIGINT NOT NULL REFERENCES wagers(id),
			user_id TEXT NOT NULL,
			choice TEXT NOT NULL,
			cast_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (wager_id, user_id)
		)`,
	}
	stmts = append(stmts, indexStatements...)

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create postgres schema: %w", err)
		}
	}
	return nil
}
