package wager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
	"wagerbot/internal/odds"
	"wagerbot/internal/stake"
)

const (
	DefaultHistoryLimit     = 20
	DefaultLeaderboardLimit = 10
	DefaultOpenLimit        = 25
)

// Manager owns the wager state machine: creation, side joining,
// activation, resolution and cancellation.
type Manager struct {
	store    Store
	log      *zap.Logger
	notifier events.Notifier
	now      func() time.Time
}

type Option func(*Manager)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithNotifier(n events.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func NewManager(store Store, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		store:    store,
		log:      log.Named("wager"),
		notifier: events.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now is the manager's clock in UTC.
func (m *Manager) Now() time.Time { return m.now().UTC() }

// CreateParams is everything a creator supplies. Odds are raw user input in
// American or decimal notation.
type CreateParams struct {
	CreatorID        string
	CreatorName      string
	Category         Category
	BaseAmount       decimal.Decimal
	Description      string
	SideADescription string
	SideBDescription string
	OddsA            string
	OddsB            string
	HomeTeam         string
	AwayTeam         string
	PlayerName       string
	OtherDetails     string
	ChannelID        string
}

// Create normalises odds, balances stakes once and persists a pending wager.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Wager, error) {
	base := p.BaseAmount.Round(stake.MoneyPlaces)
	if !base.IsPositive() {
		m.reject("create", ErrInvalidAmount)
		return nil, ErrInvalidAmount
	}
	cat, err := ParseCategory(string(p.Category))
	if err != nil {
		m.reject("create", err)
		return nil, err
	}

	oddsA := odds.Normalize(p.OddsA)
	oddsB := odds.Normalize(p.OddsB)
	split := stake.Balance(base, oddsA, oddsB)

	w := &Wager{
		Description: strings.TrimSpace(p.Description),
		Category:    cat,
		BaseAmount:  base,
		SideA: SideInfo{
			Description: sideLabel(p.SideADescription, "Side A"),
			Odds:        oddsA,
			Stake:       split.StakeA,
			ToWin:       split.ToWinA,
		},
		SideB: SideInfo{
			Description: sideLabel(p.SideBDescription, "Side B"),
			Odds:        oddsB,
			Stake:       split.StakeB,
			ToWin:       split.ToWinB,
		},
		Status:       StatusPending,
		CreatorID:    p.CreatorID,
		ChannelID:    p.ChannelID,
		HomeTeam:     strings.TrimSpace(p.HomeTeam),
		AwayTeam:     strings.TrimSpace(p.AwayTeam),
		PlayerName:   strings.TrimSpace(p.PlayerName),
		OtherDetails: strings.TrimSpace(p.OtherDetails),
		CreatedAt:    m.Now(),
	}

	start := time.Now()
	err = m.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpsertUser(ctx, p.CreatorID, p.CreatorName); err != nil {
			return err
		}
		id, err := tx.InsertWager(ctx, w)
		if err != nil {
			return err
		}
		w.ID = id
		return nil
	})
	metrics.ObserveSince("create", start)
	if err != nil {
		return nil, fmt.Errorf("create wager: %w", err)
	}

	metrics.WagersCreated.WithLabelValues(string(cat)).Inc()
	m.log.Info("wager created",
		zap.Int64("wager_id", w.ID),
		zap.String("creator_id", w.CreatorID),
		zap.String("category", string(cat)),
		zap.String("base", base.String()),
		zap.String("odds_a", oddsA.String()),
		zap.String("odds_b", oddsB.String()),
	)
	m.emit(ctx, events.WagerCreated, w, p.CreatorID)
	return w, nil
}

func sideLabel(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

// JoinResult is the wager after a join and whether the join activated it.
type JoinResult struct {
	Wager     *Wager
	Activated bool
}

// JoinSide claims side for userID. The claim and the activation check run in
// one transaction so two racing joins can never both succeed on the same side
// and the wager activates exactly once.
func (m *Manager) JoinSide(ctx context.Context, wagerID int64, userID, displayName string, side Side) (*JoinResult, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}

	var res JoinResult
	start := time.Now()
	err := m.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.LockWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if err := checkJoin(w, userID, side); err != nil {
			return err
		}

		ok, err := tx.ClaimSide(ctx, wagerID, side, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSideTaken
		}
		if err := tx.UpsertUser(ctx, userID, displayName); err != nil {
			return err
		}

		activated, err := tx.ActivateIfFilled(ctx, wagerID, m.Now())
		if err != nil {
			return err
		}

		if w, err = tx.LockWager(ctx, wagerID); err != nil {
			return err
		}
		res = JoinResult{Wager: w, Activated: activated}
		return nil
	})
	metrics.ObserveSince("join", start)
	if err != nil {
		if IsDomain(err) {
			m.reject("join", err)
			return nil, err
		}
		return nil, fmt.Errorf("join wager %d: %w", wagerID, err)
	}

	metrics.SideJoins.WithLabelValues(string(side)).Inc()
	m.log.Info("side joined",
		zap.Int64("wager_id", wagerID),
		zap.String("user_id", userID),
		zap.String("side", string(side)),
		zap.Bool("activated", res.Activated),
	)
	m.emit(ctx, events.WagerJoined, res.Wager, userID)
	if res.Activated {
		metrics.WagersActivated.Inc()
		m.emit(ctx, events.WagerActivated, res.Wager, userID)
	}
	return &res, nil
}

func checkJoin(w *Wager, userID string, side Side) error {
	if w.Status != StatusPending {
		return ErrNotPending
	}
	if w.Side(side.Opposite()).UserID == userID {
		return ErrSelfWager
	}
	if w.Side(side).Filled() {
		return ErrSideTaken
	}
	return nil
}

// Resolve settles an active wager in favour of winner and accrues both
// participants' stats inside tx. Callers emit events after tx commits.
func (m *Manager) Resolve(ctx context.Context, tx Tx, wagerID int64, winner Side) (*Wager, error) {
	if !winner.Valid() {
		return nil, ErrInvalidSide
	}
	w, err := tx.LockWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusActive {
		return nil, ErrNotActive
	}

	now := m.Now()
	ok, err := tx.FinishWager(ctx, wagerID, StatusActive, StatusResolved, winner, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotActive
	}

	won := w.Side(winner)
	lost := w.Side(winner.Opposite())
	deltas := []struct {
		userID string
		d      StatsDelta
	}{
		{won.UserID, StatsDelta{Won: true, Staked: won.Stake, Returned: won.ToWin}},
		{lost.UserID, StatsDelta{Staked: lost.Stake, Lost: lost.Stake}},
	}
	// User rows are locked in id order so two settlements between the same
	// pair cannot deadlock.
	if deltas[1].userID < deltas[0].userID {
		deltas[0], deltas[1] = deltas[1], deltas[0]
	}
	for _, u := range deltas {
		if err := tx.ApplyStats(ctx, u.userID, u.d); err != nil {
			return nil, fmt.Errorf("apply stats for %s: %w", u.userID, err)
		}
	}

	w.Status = StatusResolved
	w.WinningSide = winner
	w.ResolvedAt = &now
	return w, nil
}

// CancelActive cancels an active wager inside tx. Stats are untouched.
func (m *Manager) CancelActive(ctx context.Context, tx Tx, wagerID int64) (*Wager, error) {
	w, err := tx.LockWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusActive {
		return nil, ErrNotActive
	}

	now := m.Now()
	ok, err := tx.FinishWager(ctx, wagerID, StatusActive, StatusCancelled, "", now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotActive
	}
	w.Status = StatusCancelled
	w.ResolvedAt = &now
	return w, nil
}

// CancelPending cancels a wager nobody is bound to yet. Only the creator or
// someone who already joined a side may do it.
func (m *Manager) CancelPending(ctx context.Context, wagerID int64, requesterID string) (*Wager, error) {
	var out *Wager
	start := time.Now()
	err := m.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.LockWager(ctx, wagerID)
		if err != nil {
			return err
		}
		if w.Status != StatusPending {
			return ErrNotPending
		}
		if requesterID != w.CreatorID && !w.IsParticipant(requesterID) {
			return ErrUnauthorized
		}

		now := m.Now()
		ok, err := tx.FinishWager(ctx, wagerID, StatusPending, StatusCancelled, "", now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		w.Status = StatusCancelled
		w.ResolvedAt = &now
		out = w
		return nil
	})
	metrics.ObserveSince("cancel_pending", start)
	if err != nil {
		if IsDomain(err) {
			m.reject("cancel", err)
			return nil, err
		}
		return nil, fmt.Errorf("cancel wager %d: %w", wagerID, err)
	}

	metrics.Commits.WithLabelValues(string(ChoiceCancel)).Inc()
	m.log.Info("pending wager cancelled",
		zap.Int64("wager_id", wagerID),
		zap.String("requester_id", requesterID),
	)
	e := Snapshot(events.WagerCancelled, out, requesterID, out.ResolvedAt.UTC())
	e.Committed = true
	e.Outcome = string(ChoiceCancel)
	m.notifier.Notify(ctx, e)
	return out, nil
}

// RememberUser records the latest display name for userID.
func (m *Manager) RememberUser(ctx context.Context, userID, displayName string) error {
	if userID == "" {
		return nil
	}
	return m.store.WithTx(ctx, func(tx Tx) error {
		return tx.UpsertUser(ctx, userID, displayName)
	})
}

func (m *Manager) Get(ctx context.Context, id int64) (*Wager, error) {
	return m.store.GetWager(ctx, id)
}

// GetByExternalRef finds the wager announced by a given message.
func (m *Manager) GetByExternalRef(ctx context.Context, ref string) (*Wager, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	return m.store.GetWagerByExternalRef(ctx, ref)
}

// ListOpen returns active and pending wagers.
func (m *Manager) ListOpen(ctx context.Context, limit int) ([]Wager, error) {
	if limit <= 0 {
		limit = DefaultOpenLimit
	}
	ws, err := m.store.ListOpenWagers(ctx, limit)
	if err != nil {
		return nil, err
	}
	if n, err := m.store.CountOpenWagers(ctx); err == nil {
		metrics.OpenWagers.Set(float64(n))
	} else {
		m.log.Warn("failed to count open wagers", zap.Error(err))
	}
	return ws, nil
}

func (m *Manager) History(ctx context.Context, userID string, limit int) ([]Wager, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return m.store.UserHistory(ctx, userID, limit)
}

// Stats returns userID's stats, zero valued when the user never settled or
// joined anything.
func (m *Manager) Stats(ctx context.Context, userID string) (*UserStats, error) {
	s, err := m.store.GetUserStats(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &UserStats{UserID: userID}, nil
	}
	return s, err
}

func (m *Manager) Leaderboard(ctx context.Context, limit int) ([]UserStats, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return m.store.Leaderboard(ctx, limit)
}

// AttachExternalRef links the announcement message to the wager.
func (m *Manager) AttachExternalRef(ctx context.Context, wagerID int64, ref, channelID string) error {
	return m.store.WithTx(ctx, func(tx Tx) error {
		return tx.SetWagerExternalRef(ctx, wagerID, ref, channelID)
	})
}

func (m *Manager) reject(op string, err error) {
	metrics.Rejections.WithLabelValues(op, Code(err)).Inc()
	m.log.Debug("operation rejected", zap.String("operation", op), zap.Error(err))
}

func (m *Manager) emit(ctx context.Context, kind events.Kind, w *Wager, actorID string) {
	m.notifier.Notify(ctx, Snapshot(kind, w, actorID, m.Now()))
}

// Snapshot builds a status event carrying w's current state.
func Snapshot(kind events.Kind, w *Wager, actorID string, at time.Time) events.Event {
	e := events.New(kind, w.ID, at)
	e.ActorID = actorID
	e.Description = w.Description
	e.Status = string(w.Status)
	e.TotalPot = w.TotalPot().StringFixed(stake.MoneyPlaces)
	e.ChannelID = w.ChannelID
	e.Participants = w.Participants()
	if w.WinningSide != "" {
		e.Outcome = string(w.WinningSide)
	}
	return e
}
