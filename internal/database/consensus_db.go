package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wagerbot/internal/wager"
)

const requestColumns = `id, wager_id, kind, proposed_winner, proposer_id,
	side_a_confirmed, side_b_confirmed, external_ref, created_at, expires_at`

func scanRequest(row scanner) (*wager.ConsensusRequest, error) {
	var (
		r           wager.ConsensusRequest
		winner, ref sql.NullString
	)
	err := row.Scan(&r.ID, &r.WagerID, &r.Kind, &winner, &r.ProposerID,
		&r.SideAConfirmed, &r.SideBConfirmed, &ref, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		return nil, err
	}
	r.ProposedWinner = wager.Side(winner.String)
	r.ExternalRef = ref.String
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	return &r, nil
}

func (c conn) getRequest(ctx context.Context, where string, args ...any) (*wager.ConsensusRequest, error) {
	r, err := scanRequest(c.queryRow(ctx,
		"SELECT "+requestColumns+" FROM consensus_requests WHERE "+where, args...))
	if err != nil {
		return nil, notFound(err, "get request")
	}
	return r, nil
}

func (c conn) wagerRequests(ctx context.Context, wagerID int64) ([]wager.ConsensusRequest, error) {
	rows, err := c.query(ctx,
		"SELECT "+requestColumns+" FROM consensus_requests WHERE wager_id = ? ORDER BY created_at DESC",
		wagerID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []wager.ConsensusRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) GetRequest(ctx context.Context, id string) (*wager.ConsensusRequest, error) {
	return s.reader().getRequest(ctx, "id = ?", id)
}

func (s *Store) GetRequestByExternalRef(ctx context.Context, ref string) (*wager.ConsensusRequest, error) {
	return s.reader().getRequest(ctx, "external_ref = ?", ref)
}

func (t *sqlTx) GetRequest(ctx context.Context, id string) (*wager.ConsensusRequest, error) {
	return t.getRequest(ctx, "id = ?", id)
}

// ActiveRequest filters expiry in Go; SQLite has no native timestamp type
// to compare against.
func (t *sqlTx) ActiveRequest(ctx context.Context, wagerID int64, now time.Time) (*wager.ConsensusRequest, error) {
	reqs, err := t.wagerRequests(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if !reqs[i].Expired(now) {
			return &reqs[i], nil
		}
	}
	return nil, nil
}

func (t *sqlTx) InsertRequest(ctx context.Context, r *wager.ConsensusRequest) error {
	_, err := t.exec(ctx, `INSERT INTO consensus_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WagerID, string(r.Kind), nullString(string(r.ProposedWinner)), r.ProposerID,
		r.SideAConfirmed, r.SideBConfirmed, nullString(r.ExternalRef),
		r.CreatedAt.UTC(), r.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *sqlTx) ConfirmRequest(ctx context.Context, id string, side wager.Side) error {
	col := "side_b_confirmed"
	if side == wager.SideA {
		col = "side_a_confirmed"
	}
	ok, err := t.execOne(ctx, "UPDATE consensus_requests SET "+col+" = ? WHERE id = ?", true, id)
	if err != nil {
		return fmt.Errorf("confirm request: %w", err)
	}
	if !ok {
		return fmt.Errorf("confirm request %s: %w", id, wager.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) SetRequestExternalRef(ctx context.Context, id, ref string) error {
	ok, err := t.execOne(ctx, "UPDATE consensus_requests SET external_ref = ? WHERE id = ?", nullString(ref), id)
	if err != nil {
		return fmt.Errorf("set request ref: %w", err)
	}
	if !ok {
		return fmt.Errorf("set request ref %s: %w", id, wager.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) DeleteRequests(ctx context.Context, wagerID int64) error {
	if _, err := t.exec(ctx, "DELETE FROM consensus_requests WHERE wager_id = ?", wagerID); err != nil {
		return fmt.Errorf("delete requests: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteExpiredRequests(ctx context.Context, wagerID int64, now time.Time) error {
	reqs, err := t.wagerRequests(ctx, wagerID)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if !r.Expired(now) {
			continue
		}
		if _, err := t.exec(ctx, "DELETE FROM consensus_requests WHERE id = ?", r.ID); err != nil {
			return fmt.Errorf("delete expired request: %w", err)
		}
	}
	return nil
}

func (t *sqlTx) SetVote(ctx context.Context, wagerID int64, userID string, c wager.Choice) error {
	_, err := t.exec(ctx, `INSERT INTO consensus_votes (wager_id, user_id, choice, cast_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(wager_id, user_id) DO UPDATE SET choice = excluded.choice, cast_at = excluded.cast_at`,
		wagerID, userID, string(c), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set vote: %w", err)
	}
	return nil
}

func (t *sqlTx) Votes(ctx context.Context, wagerID int64) (map[string]wager.Choice, error) {
	rows, err := t.query(ctx, "SELECT user_id, choice FROM consensus_votes WHERE wager_id = ?", wagerID)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	votes := make(map[string]wager.Choice)
	for rows.Next() {
		var userID, choice string
		if err := rows.Scan(&userID, &choice); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes[userID] = wager.Choice(choice)
	}
	return votes, rows.Err()
}

func (t *sqlTx) ClearVotes(ctx context.Context, wagerID int64) error {
	if _, err := t.exec(ctx, "DELETE FROM consensus_votes WHERE wager_id = ?", wagerID); err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	return nil
}
