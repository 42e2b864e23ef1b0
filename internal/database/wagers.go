package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wagerbot/internal/wager"
)

const wagerColumns = `id, description, category, base_amount,
	side_a_description, side_a_odds, side_a_user_id, side_a_stake, side_a_to_win,
	side_b_description, side_b_odds, side_b_user_id, side_b_stake, side_b_to_win,
	status, winning_side, creator_id, external_ref, channel_id,
	home_team, away_team, player_name, other_details,
	created_at, activated_at, resolved_at`

func scanWager(row scanner) (*wager.Wager, error) {
	var (
		w                       wager.Wager
		userA, userB            sql.NullString
		winner, ref             sql.NullString
		activatedAt, resolvedAt sql.NullTime
	)
	err := row.Scan(
		&w.ID, &w.Description, &w.Category, &w.BaseAmount,
		&w.SideA.Description, &w.SideA.Odds, &userA, &w.SideA.Stake, &w.SideA.ToWin,
		&w.SideB.Description, &w.SideB.Odds, &userB, &w.SideB.Stake, &w.SideB.ToWin,
		&w.Status, &winner, &w.CreatorID, &ref, &w.ChannelID,
		&w.HomeTeam, &w.AwayTeam, &w.PlayerName, &w.OtherDetails,
		&w.CreatedAt, &activatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	w.SideA.UserID = userA.String
	w.SideB.UserID = userB.String
	w.WinningSide = wager.Side(winner.String)
	w.ExternalRef = ref.String
	w.CreatedAt = w.CreatedAt.UTC()
	w.ActivatedAt = timePtr(activatedAt)
	w.ResolvedAt = timePtr(resolvedAt)
	return &w, nil
}

func (c conn) getWager(ctx context.Context, where string, lock bool, args ...any) (*wager.Wager, error) {
	q := "SELECT " + wagerColumns + " FROM wagers WHERE " + where
	if lock {
		q += c.db.LockSuffix()
	}
	w, err := scanWager(c.queryRow(ctx, q, args...))
	if err != nil {
		return nil, notFound(err, "get wager")
	}
	return w, nil
}

func (c conn) listWagers(ctx context.Context, where string, args ...any) ([]wager.Wager, error) {
	rows, err := c.query(ctx, "SELECT "+wagerColumns+" FROM wagers WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list wagers: %w", err)
	}
	defer rows.Close()

	var out []wager.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *Store) GetWager(ctx context.Context, id int64) (*wager.Wager, error) {
	return s.reader().getWager(ctx, "id = ?", false, id)
}

func (s *Store) GetWagerByExternalRef(ctx context.Context, ref string) (*wager.Wager, error) {
	return s.reader().getWager(ctx, "external_ref = ?", false, ref)
}

func (s *Store) ListOpenWagers(ctx context.Context, limit int) ([]wager.Wager, error) {
	return s.reader().listWagers(ctx,
		"status IN ('pending', 'active') ORDER BY id DESC LIMIT ?", limit)
}

func (s *Store) CountOpenWagers(ctx context.Context) (int, error) {
	var n int
	err := s.reader().queryRow(ctx,
		"SELECT COUNT(*) FROM wagers WHERE status IN ('pending', 'active')").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open wagers: %w", err)
	}
	return n, nil
}

func (s *Store) UserHistory(ctx context.Context, userID string, limit int) ([]wager.Wager, error) {
	return s.reader().listWagers(ctx,
		"creator_id = ? OR side_a_user_id = ? OR side_b_user_id = ? ORDER BY id DESC LIMIT ?",
		userID, userID, userID, limit)
}

func (t *sqlTx) LockWager(ctx context.Context, id int64) (*wager.Wager, error) {
	return t.getWager(ctx, "id = ?", true, id)
}

func (t *sqlTx) InsertWager(ctx context.Context, w *wager.Wager) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `INSERT INTO wagers (
			description, category, base_amount,
			side_a_description, side_a_odds, side_a_user_id, side_a_stake, side_a_to_win,
			side_b_description, side_b_odds, side_b_user_id, side_b_stake, side_b_to_win,
			status, creator_id, external_ref, channel_id,
			home_team, away_team, player_name, other_details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		w.Description, string(w.Category), w.BaseAmount,
		w.SideA.Description, w.SideA.Odds, nullString(w.SideA.UserID), w.SideA.Stake, w.SideA.ToWin,
		w.SideB.Description, w.SideB.Odds, nullString(w.SideB.UserID), w.SideB.Stake, w.SideB.ToWin,
		string(w.Status), w.CreatorID, nullString(w.ExternalRef), w.ChannelID,
		w.HomeTeam, w.AwayTeam, w.PlayerName, w.OtherDetails, w.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert wager: %w", err)
	}
	return id, nil
}

// sideColumns returns the user column of side and of the opposite side.
// Column names never come from user input.
func sideColumns(side wager.Side) (own, other string) {
	if side == wager.SideA {
		return "side_a_user_id", "side_b_user_id"
	}
	return "side_b_user_id", "side_a_user_id"
}

func (t *sqlTx) ClaimSide(ctx context.Context, id int64, side wager.Side, userID string) (bool, error) {
	own, other := sideColumns(side)
	ok, err := t.execOne(ctx, `UPDATE wagers SET `+own+` = ?
		WHERE id = ? AND status = 'pending' AND `+own+` IS NULL
		AND (`+other+` IS NULL OR `+other+` <> ?)`,
		userID, id, userID)
	if err != nil {
		return false, fmt.Errorf("claim side: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) ActivateIfFilled(ctx context.Context, id int64, at time.Time) (bool, error) {
	ok, err := t.execOne(ctx, `UPDATE wagers SET status = 'active', activated_at = ?
		WHERE id = ? AND status = 'pending'
		AND side_a_user_id IS NOT NULL AND side_b_user_id IS NOT NULL`,
		at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("activate wager: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) FinishWager(ctx context.Context, id int64, from, to wager.Status, winner wager.Side, at time.Time) (bool, error) {
	ok, err := t.execOne(ctx, `UPDATE wagers SET status = ?, winning_side = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		string(to), nullString(string(winner)), at.UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("finish wager: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) SetWagerExternalRef(ctx context.Context, id int64, ref, channelID string) error {
	var (
		ok  bool
		err error
	)
	if channelID == "" {
		ok, err = t.execOne(ctx, "UPDATE wagers SET external_ref = ? WHERE id = ?", nullString(ref), id)
	} else {
		ok, err = t.execOne(ctx, "UPDATE wagers SET external_ref = ?, channel_id = ? WHERE id = ?",
			nullString(ref), channelID, id)
	}
	if err != nil {
		return fmt.Errorf("set wager ref: %w", err)
	}
	if !ok {
		return fmt.Errorf("set wager ref %d: %w", id, wager.ErrNotFound)
	}
	return nil
}
