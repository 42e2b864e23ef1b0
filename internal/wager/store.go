package wager

import (
	"context"
	"time"
)

// Reader is the read side of the wager store. Missing rows are reported as
// ErrNotFound.
type Reader interface {
	GetWager(ctx context.Context, id int64) (*Wager, error)
	GetWagerByExternalRef(ctx context.Context, ref string) (*Wager, error)
	// ListOpenWagers returns active and pending wagers, newest first.
	ListOpenWagers(ctx context.Context, limit int) ([]Wager, error)
	CountOpenWagers(ctx context.Context) (int, error)
	// UserHistory returns wagers userID created or joined, newest first.
	UserHistory(ctx context.Context, userID string, limit int) ([]Wager, error)
	GetUserStats(ctx context.Context, userID string) (*UserStats, error)
	// Leaderboard returns users ordered by net profit, highest first.
	Leaderboard(ctx context.Context, limit int) ([]UserStats, error)
	GetRequest(ctx context.Context, id string) (*ConsensusRequest, error)
	GetRequestByExternalRef(ctx context.Context, ref string) (*ConsensusRequest, error)
}

// Tx is a unit of work against the store. Every mutation of a wager, its
// requests, its votes and its participants' stats happens inside one.
type Tx interface {
	// LockWager reads the wager and holds it against concurrent writers
	// until the transaction ends.
	LockWager(ctx context.Context, id int64) (*Wager, error)
	InsertWager(ctx context.Context, w *Wager) (int64, error)
	// ClaimSide sets the side's user only while the wager is pending, the
	// side is empty and userID does not hold the other side.
	ClaimSide(ctx context.Context, id int64, side Side, userID string) (bool, error)
	// ActivateIfFilled moves a pending wager with both sides filled to active.
	ActivateIfFilled(ctx context.Context, id int64, at time.Time) (bool, error)
	// FinishWager moves the wager from one status to a terminal one and
	// stamps resolvedAt. winner is empty for cancellations.
	FinishWager(ctx context.Context, id int64, from, to Status, winner Side, at time.Time) (bool, error)
	SetWagerExternalRef(ctx context.Context, id int64, ref, channelID string) error

	UpsertUser(ctx context.Context, userID, displayName string) error
	ApplyStats(ctx context.Context, userID string, d StatsDelta) error

	// ActiveRequest returns the unexpired request for the wager, or nil.
	ActiveRequest(ctx context.Context, wagerID int64, now time.Time) (*ConsensusRequest, error)
	GetRequest(ctx context.Context, id string) (*ConsensusRequest, error)
	InsertRequest(ctx context.Context, r *ConsensusRequest) error
	ConfirmRequest(ctx context.Context, id string, side Side) error
	SetRequestExternalRef(ctx context.Context, id, ref string) error
	DeleteRequests(ctx context.Context, wagerID int64) error
	DeleteExpiredRequests(ctx context.Context, wagerID int64, now time.Time) error

	// SetVote replaces userID's vote on the wager.
	SetVote(ctx context.Context, wagerID int64, userID string, c Choice) error
	Votes(ctx context.Context, wagerID int64) (map[string]Choice, error)
	ClearVotes(ctx context.Context, wagerID int64) error
}

// Store is implemented by internal/database.
type Store interface {
	Reader
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
}
