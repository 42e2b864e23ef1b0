package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteParams make every transaction take the write lock up front, so a
// wager read inside a transaction cannot go stale before it is updated.
const sqliteParams = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"

// SQLiteDatabase implements Database for SQLite.
type SQLiteDatabase struct {
	connString string
	db         *sql.DB
}

func NewSQLiteDatabase(connString string) *SQLiteDatabase {
	return &SQLiteDatabase{connString: connString}
}

func sqliteDSN(connString string) string {
	if strings.Contains(connString, "?") {
		return connString + "&" + sqliteParams
	}
	return connString + "?" + sqliteParams
}

// Open connects to the database file.
func (s *SQLiteDatabase) Open() error {
	db, err := sql.Open("sqlite3", sqliteDSN(s.connString))
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection: transactions queue behind each other in the pool
	// instead of racing for the file lock.
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteDatabase) GetDB() *sql.DB { return s.db }

func (s *SQLiteDatabase) Dialect() Dialect { return DialectSQLite }

// Placeholder returns ? (SQLite ignores the index).
func (s *SQLiteDatabase) Placeholder(int) string { return "?" }

func (s *SQLiteDatabase) LockSuffix() string { return "" }

// CreateTables creates the SQLite schema. Money columns are
// TEXT so decimals round-trip exactly.
func (s *SQLiteDatabase) CreateTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT NOT NULL PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			total_wagers INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			total_staked TEXT NOT NULL DEFAULT '0',
			total_returned TEXT NOT NULL DEFAULT '0',
			total_lost TEXT NOT NULL DEFAULT '0',
			net_profit TEXT NOT NULL DEFAULT '0',
			webhook_url TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wagers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			base_amount TEXT NOT NULL,
			side_a_description TEXT NOT NULL,
			side_a_odds TEXT NOT NULL,
			side_a_user_id TEXT,
			side_a_stake TEXT NOT NULL,
			side_a_to_win TEXT NOT NULL,
			side_b_description TEXT NOT NULL,
			side_b_odds TEXT NOT NULL,
			side_b_user_id TEXT,
			side_b_stake TEXT NOT NULL,
			side_b_to_win TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			winning_side TEXT,
			creator_id TEXT NOT NULL,
			external_ref TEXT,
			channel_id TEXT NOT NULL DEFAULT '',
			home_team TEXT NOT NULL DEFAULT '',
			away_team TEXT NOT NULL DEFAULT '',
			player_name TEXT NOT NULL DEFAULT '',
			other_details TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			activated_at DATETIME,
			resolved_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS consensus_requests (
			id TEXT NOT NULL PRIMARY KEY,
			wager_id INTEGER NOT NULL REFERENCES wagers(id),
			kind TEXT NOT NULL,
			proposed_winner TEXT,
			proposer_id TEXT NOT NULL,
			side_a_confirmed BOOLEAN NOT NULL DEFAULT 0,
			side_b_confirmed BOOLEAN NOT NULL DEFAULT 0,
			external_ref TEXT,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS consensus_votes (
			wager_id INTEGER NOT NULL REFERENCES wagers(id),
			user_id TEXT NOT NULL,
			choice TEXT NOT NULL,
			cast_at DATETIME NOT NULL,
			PRIMARY KEY (wager_id, user_id)
		)`,
	}
	stmts = append(stmts, indexStatements...)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create sqlite schema: %w", err)
		}
	}
	return nil
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_wagers_status ON wagers(status)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_creator ON wagers(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_side_a ON wagers(side_a_user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_side_b ON wagers(side_b_user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_external_ref ON wagers(external_ref)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_wager ON consensus_requests(wager_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_external_ref ON consensus_requests(external_ref)`,
}
