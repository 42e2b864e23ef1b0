package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"wagerbot/internal/wager"
)

const statsColumns = `user_id, display_name, total_wagers, wins, losses,
	total_staked, total_returned, total_lost, net_profit`

func scanStats(row scanner) (*wager.UserStats, error) {
	var s wager.UserStats
	err := row.Scan(&s.UserID, &s.DisplayName, &s.TotalWagers, &s.Wins, &s.Losses,
		&s.TotalStaked, &s.TotalReturned, &s.TotalLost, &s.NetProfit)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Store) GetUserStats(ctx context.Context, userID string) (*wager.UserStats, error) {
	st, err := scanStats(s.reader().queryRow(ctx,
		"SELECT "+statsColumns+" FROM users WHERE user_id = ?", userID))
	if err != nil {
		return nil, notFound(err, "get user stats")
	}
	return st, nil
}

// Leaderboard ranks users with at least one settled wager by net profit.
// Money is TEXT on SQLite, so ordering happens here rather than in SQL.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]wager.UserStats, error) {
	rows, err := s.reader().query(ctx,
		"SELECT "+statsColumns+" FROM users WHERE total_wagers > 0")
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var users []wager.UserStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		users = append(users, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		if c := users[i].NetProfit.Cmp(users[j].NetProfit); c != 0 {
			return c > 0
		}
		if users[i].Wins != users[j].Wins {
			return users[i].Wins > users[j].Wins
		}
		return users[i].UserID < users[j].UserID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// UpsertUser creates the user or refreshes the display name. An empty name
// never overwrites a known one.
func (t *sqlTx) UpsertUser(ctx context.Context, userID, displayName string) error {
	now := time.Now().UTC()
	_, err := t.exec(ctx, `INSERT INTO users (user_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE users.display_name END,
			updated_at = excluded.updated_at`,
		userID, displayName, now, now)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ApplyStats folds one settlement into the user's running totals.
func (t *sqlTx) ApplyStats(ctx context.Context, userID string, d wager.StatsDelta) error {
	if err := t.UpsertUser(ctx, userID, ""); err != nil {
		return err
	}

	q := "SELECT " + statsColumns + " FROM users WHERE user_id = ?" + t.db.LockSuffix()
	st, err := scanStats(t.queryRow(ctx, q, userID))
	if err != nil {
		return notFound(err, "load user stats")
	}
	st.Apply(d)

	_, err = t.exec(ctx, `UPDATE users SET
			total_wagers = ?, wins = ?, losses = ?,
			total_staked = ?, total_returned = ?, total_lost = ?, net_profit = ?,
			updated_at = ?
		WHERE user_id = ?`,
		st.TotalWagers, st.Wins, st.Losses,
		st.TotalStaked, st.TotalReturned, st.TotalLost, st.NetProfit,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update user stats: %w", err)
	}
	return nil
}

// SetWebhook stores a user's webhook URL. An empty URL removes it.
func (s *Store) SetWebhook(ctx context.Context, userID, url string) error {
	now := time.Now().UTC()
	_, err := s.reader().exec(ctx, `INSERT INTO users (user_id, webhook_url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET webhook_url = excluded.webhook_url, updated_at = excluded.updated_at`,
		userID, nullString(url), now, now)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a user's webhook URL, or "" when none is set.
func (s *Store) GetWebhook(ctx context.Context, userID string) (string, error) {
	var url sql.NullString
	err := s.reader().queryRow(ctx, "SELECT webhook_url FROM users WHERE user_id = ?", userID).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get webhook: %w", err)
	}
	return url.String, nil
}
