// Package consensus settles active wagers only when both participants agree,
// either through a vote pool or through an explicit request the other side
// confirms.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
	"wagerbot/internal/wager"
)

// DefaultRequestTTL is how long an explicit request stays confirmable.
const DefaultRequestTTL = 24 * time.Hour

type Coordinator struct {
	store    wager.Store
	manager  *wager.Manager
	notifier events.Notifier
	log      *zap.Logger
	ttl      time.Duration
}

type Option func(*Coordinator)

func WithRequestTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithNotifier(n events.Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// New builds a coordinator. Commits go through manager so the resolution
// rules and stats accrual live in one place; the clock is the manager's.
func New(store wager.Store, manager *wager.Manager, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		store:    store,
		manager:  manager,
		notifier: events.Nop{},
		log:      log.Named("consensus"),
		ttl:      DefaultRequestTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VoteResult reports the pool after a vote.
type VoteResult struct {
	Committed bool
	// Outcome is the agreed choice when Committed.
	Outcome wager.Choice
	// PendingFrom lists participants whose vote does not match yet.
	PendingFrom []string
	Wager       *wager.Wager
}

// CastVote records userID's choice, replacing any earlier vote. When both
// participants hold the same choice the wager is resolved or cancelled in
// the same transaction.
func (c *Coordinator) CastVote(ctx context.Context, wagerID int64, userID string, choice wager.Choice) (*VoteResult, error) {
	if !choice.Valid() {
		return nil, wager.ErrInvalidChoice
	}

	var res VoteResult
	start := time.Now()
	err := c.store.WithTx(ctx, func(tx wager.Tx) error {
		w, err := tx.LockWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.Status != wager.StatusActive {
			return wager.ErrNotActive
		}
		if !w.IsParticipant(userID) {
			return wager.ErrUnauthorized
		}

		if err := tx.SetVote(ctx, wagerID, userID, choice); err != nil {
			return err
		}
		votes, err := tx.Votes(ctx, wagerID)
		if err != nil {
			return err
		}

		res.Wager = w
		res.PendingFrom = pendingVoters(w, votes, choice)
		if len(res.PendingFrom) > 0 {
			return nil
		}

		done, err := c.commit(ctx, tx, wagerID, choice)
		if err != nil {
			return err
		}
		res.Committed = true
		res.Outcome = choice
		res.Wager = done
		return nil
	})
	metrics.ObserveSince("vote", start)
	if err != nil {
		return nil, c.fail("vote", wagerID, err)
	}

	metrics.VotesCast.WithLabelValues(string(choice)).Inc()
	c.log.Info("vote cast",
		zap.Int64("wager_id", wagerID),
		zap.String("user_id", userID),
		zap.String("choice", string(choice)),
		zap.Bool("committed", res.Committed),
	)

	e := wager.Snapshot(events.VoteCast, res.Wager, userID, c.manager.Now())
	e.Choice = string(choice)
	e.PendingFrom = res.PendingFrom
	c.notifier.Notify(ctx, e)
	if res.Committed {
		c.committed(ctx, res.Wager, userID, "")
	}
	return &res, nil
}

// pendingVoters lists participants whose vote differs from choice.
func pendingVoters(w *wager.Wager, votes map[string]wager.Choice, choice wager.Choice) []string {
	var pending []string
	for _, id := range w.Participants() {
		if votes[id] != choice {
			pending = append(pending, id)
		}
	}
	return pending
}

// ProposeResolution opens a request naming side as the winner, already
// confirmed by the proposer.
func (c *Coordinator) ProposeResolution(ctx context.Context, wagerID int64, userID string, side wager.Side) (*wager.ConsensusRequest, error) {
	if !side.Valid() {
		return nil, wager.ErrInvalidSide
	}
	return c.propose(ctx, wagerID, userID, wager.RequestResolve, side)
}

// CancelProposal is the outcome of ProposeCancellation: either the pending
// wager was cancelled outright or a request now awaits the other side.
type CancelProposal struct {
	Cancelled bool
	Wager     *wager.Wager
	Request   *wager.ConsensusRequest
}

// ProposeCancellation cancels a pending wager immediately and opens a cancel
// request for an active one.
func (c *Coordinator) ProposeCancellation(ctx context.Context, wagerID int64, userID string) (*CancelProposal, error) {
	w, err := c.store.GetWager(ctx, wagerID)
	if err != nil {
		return nil, c.fail("propose_cancel", wagerID, err)
	}

	if w.Status == wager.StatusPending {
		cancelled, err := c.manager.CancelPending(ctx, wagerID, userID)
		if err == nil {
			return &CancelProposal{Cancelled: true, Wager: cancelled}, nil
		}
		// Activated since the read: fall through to a cancel request.
		if !errors.Is(err, wager.ErrNotPending) {
			return nil, err
		}
	}

	req, err := c.propose(ctx, wagerID, userID, wager.RequestCancel, "")
	if err != nil {
		return nil, err
	}
	return &CancelProposal{Request: req}, nil
}

func (c *Coordinator) propose(ctx context.Context, wagerID int64, userID string, kind wager.RequestKind, winner wager.Side) (*wager.ConsensusRequest, error) {
	var (
		req *wager.ConsensusRequest
		w   *wager.Wager
	)
	op := "propose_" + string(kind)
	start := time.Now()
	err := c.store.WithTx(ctx, func(tx wager.Tx) error {
		var err error
		w, err = tx.LockWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.Status != wager.StatusActive {
			return wager.ErrNotActive
		}
		side, ok := w.SideOf(userID)
		if !ok {
			return wager.ErrUnauthorized
		}

		now := c.manager.Now()
		if err := tx.DeleteExpiredRequests(ctx, wagerID, now); err != nil {
			return err
		}
		existing, err := tx.ActiveRequest(ctx, wagerID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			return wager.ErrDuplicateRequest
		}

		req = &wager.ConsensusRequest{
			ID:             uuid.NewString(),
			WagerID:        wagerID,
			Kind:           kind,
			ProposedWinner: winner,
			ProposerID:     userID,
			SideAConfirmed: side == wager.SideA,
			SideBConfirmed: side == wager.SideB,
			CreatedAt:      now,
			ExpiresAt:      now.Add(c.ttl),
		}
		return tx.InsertRequest(ctx, req)
	})
	metrics.ObserveSince(op, start)
	if err != nil {
		return nil, c.fail(op, wagerID, err)
	}

	metrics.RequestsOpened.WithLabelValues(string(kind)).Inc()
	c.log.Info("request proposed",
		zap.Int64("wager_id", wagerID),
		zap.String("request_id", req.ID),
		zap.String("kind", string(kind)),
		zap.String("proposer_id", userID),
	)

	kindEvent := events.ResolutionProposed
	if kind == wager.RequestCancel {
		kindEvent = events.CancellationProposed
	}
	e := wager.Snapshot(kindEvent, w, userID, req.CreatedAt)
	e.RequestID = req.ID
	e.Choice = string(req.Choice())
	e.PendingFrom = unconfirmed(w, req)
	c.notifier.Notify(ctx, e)
	return req, nil
}

func unconfirmed(w *wager.Wager, r *wager.ConsensusRequest) []string {
	var ids []string
	for _, s := range []wager.Side{wager.SideA, wager.SideB} {
		if !r.Confirmed(s) {
			ids = append(ids, w.Side(s).UserID)
		}
	}
	return ids
}

// ConfirmResult reports a confirmation and whether it settled the wager.
type ConfirmResult struct {
	Committed bool
	Request   *wager.ConsensusRequest
	Wager     *wager.Wager
}

// Confirm records userID's agreement with an open request. Once both sides
// have confirmed, the request takes effect and every request and vote for
// the wager is cleared, so confirming again reports ErrNotFound.
func (c *Coordinator) Confirm(ctx context.Context, requestID, userID string) (*ConfirmResult, error) {
	var res ConfirmResult
	start := time.Now()
	err := c.store.WithTx(ctx, func(tx wager.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		now := c.manager.Now()
		if req.Expired(now) {
			return fmt.Errorf("request %s expired: %w", requestID, wager.ErrNotFound)
		}

		w, err := tx.LockWager(ctx, req.WagerID)
		if err != nil {
			return err
		}
		// Re-read under the wager lock; a racing confirmation may have
		// committed in between.
		if req, err = tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		if w.Status != wager.StatusActive {
			return wager.ErrNotActive
		}
		side, ok := w.SideOf(userID)
		if !ok {
			return wager.ErrUnauthorized
		}

		res.Request = req
		res.Wager = w
		if req.Confirmed(side) {
			return nil
		}

		if err := tx.ConfirmRequest(ctx, requestID, side); err != nil {
			return err
		}
		if side == wager.SideA {
			req.SideAConfirmed = true
		} else {
			req.SideBConfirmed = true
		}
		if !req.Complete() {
			return nil
		}

		done, err := c.commit(ctx, tx, req.WagerID, req.Choice())
		if err != nil {
			return err
		}
		res.Committed = true
		res.Wager = done
		return nil
	})
	metrics.ObserveSince("confirm", start)
	if err != nil {
		return nil, c.fail("confirm", 0, err)
	}

	c.log.Info("request confirmed",
		zap.String("request_id", requestID),
		zap.Int64("wager_id", res.Request.WagerID),
		zap.String("user_id", userID),
		zap.Bool("committed", res.Committed),
	)

	e := wager.Snapshot(events.RequestConfirmed, res.Wager, userID, c.manager.Now())
	e.RequestID = requestID
	e.Choice = string(res.Request.Choice())
	e.Committed = res.Committed
	if !res.Committed {
		e.PendingFrom = unconfirmed(res.Wager, res.Request)
	}
	c.notifier.Notify(ctx, e)
	if res.Committed {
		c.committed(ctx, res.Wager, userID, requestID)
	}
	return &res, nil
}

// commit applies an agreed choice inside tx and clears the wager's pending
// consensus state.
func (c *Coordinator) commit(ctx context.Context, tx wager.Tx, wagerID int64, choice wager.Choice) (*wager.Wager, error) {
	var (
		w   *wager.Wager
		err error
	)
	if side, ok := choice.Side(); ok {
		w, err = c.manager.Resolve(ctx, tx, wagerID, side)
	} else {
		w, err = c.manager.CancelActive(ctx, tx, wagerID)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteRequests(ctx, wagerID); err != nil {
		return nil, err
	}
	if err := tx.ClearVotes(ctx, wagerID); err != nil {
		return nil, err
	}
	return w, nil
}

func (c *Coordinator) committed(ctx context.Context, w *wager.Wager, actorID, requestID string) {
	kind := events.WagerResolved
	outcome := string(w.WinningSide)
	if w.Status == wager.StatusCancelled {
		kind = events.WagerCancelled
		outcome = string(wager.ChoiceCancel)
	}
	metrics.Commits.WithLabelValues(outcome).Inc()
	c.log.Info("wager settled",
		zap.Int64("wager_id", w.ID),
		zap.String("status", string(w.Status)),
		zap.String("outcome", outcome),
	)

	e := wager.Snapshot(kind, w, actorID, c.manager.Now())
	e.RequestID = requestID
	e.Committed = true
	e.Outcome = outcome
	c.notifier.Notify(ctx, e)
}

// RequestByExternalRef finds the request announced by a given message.
func (c *Coordinator) RequestByExternalRef(ctx context.Context, ref string) (*wager.ConsensusRequest, error) {
	if ref == "" {
		return nil, wager.ErrNotFound
	}
	return c.store.GetRequestByExternalRef(ctx, ref)
}

// AttachRequestRef links the announcement message to the request.
func (c *Coordinator) AttachRequestRef(ctx context.Context, requestID, ref string) error {
	return c.store.WithTx(ctx, func(tx wager.Tx) error {
		return tx.SetRequestExternalRef(ctx, requestID, ref)
	})
}

func (c *Coordinator) fail(op string, wagerID int64, err error) error {
	if wager.IsDomain(err) {
		metrics.Rejections.WithLabelValues(op, wager.Code(err)).Inc()
		c.log.Debug("operation rejected",
			zap.String("operation", op),
			zap.Int64("wager_id", wagerID),
			zap.Error(err),
		)
		return err
	}
	c.log.Error("operation failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
