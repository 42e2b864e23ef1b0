// Package wager holds the two-party wager model and its lifecycle rules.
package wager

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category of a wager. It only affects presentation (emojis, detail fields).
type Category string

const (
	CategoryGame   Category = "game"
	CategoryProp   Category = "prop"
	CategoryFuture Category = "future"
)

// ParseCategory accepts any casing of game, prop or future.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryGame, CategoryProp, CategoryFuture:
		return c, nil
	}
	return "", ErrInvalidCategory
}

// Side identifies one half of a wager.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Valid() bool { return s == SideA || s == SideB }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Status of a wager. Transitions only move forward:
// pending -> active -> resolved|cancelled, or pending -> cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// SideInfo is one side of a wager with its balanced stake.
type SideInfo struct {
	Description string          `json:"description"`
	Odds        decimal.Decimal `json:"odds"`
	UserID      string          `json:"userId,omitempty"`
	Stake       decimal.Decimal `json:"stake"`
	ToWin       decimal.Decimal `json:"toWin"`
}

// Filled reports whether a participant holds this side.
func (si SideInfo) Filled() bool { return si.UserID != "" }

type Wager struct {
	ID           int64           `json:"id"`
	Description  string          `json:"description"`
	Category     Category        `json:"category"`
	BaseAmount   decimal.Decimal `json:"baseAmount"`
	SideA        SideInfo        `json:"sideA"`
	SideB        SideInfo        `json:"sideB"`
	Status       Status          `json:"status"`
	WinningSide  Side            `json:"winningSide,omitempty"`
	CreatorID    string          `json:"creatorId"`
	ExternalRef  string          `json:"externalRef,omitempty"`
	ChannelID    string          `json:"channelId,omitempty"`
	HomeTeam     string          `json:"homeTeam,omitempty"`
	AwayTeam     string          `json:"awayTeam,omitempty"`
	PlayerName   string          `json:"playerName,omitempty"`
	OtherDetails string          `json:"otherDetails,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ActivatedAt  *time.Time      `json:"activatedAt,omitempty"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
}

// Side returns a copy of the requested side.
func (w *Wager) Side(s Side) SideInfo {
	if s == SideA {
		return w.SideA
	}
	return w.SideB
}

// SideOf returns the side userID holds, if any.
func (w *Wager) SideOf(userID string) (Side, bool) {
	switch {
	case userID == "":
		return "", false
	case w.SideA.UserID == userID:
		return SideA, true
	case w.SideB.UserID == userID:
		return SideB, true
	}
	return "", false
}

func (w *Wager) IsParticipant(userID string) bool {
	_, ok := w.SideOf(userID)
	return ok
}

// Participants lists the joined user ids, side A first.
func (w *Wager) Participants() []string {
	var ids []string
	if w.SideA.Filled() {
		ids = append(ids, w.SideA.UserID)
	}
	if w.SideB.Filled() {
		ids = append(ids, w.SideB.UserID)
	}
	return ids
}

func (w *Wager) TotalPot() decimal.Decimal {
	return w.SideA.Stake.Add(w.SideB.Stake)
}

// Choice is a vote in the consensus pool.
type Choice string

const (
	ChoiceA      Choice = "A"
	ChoiceB      Choice = "B"
	ChoiceCancel Choice = "cancel"
)

func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB || c == ChoiceCancel
}

// Side returns the winning side a choice stands for; cancel has none.
func (c Choice) Side() (Side, bool) {
	switch c {
	case ChoiceA:
		return SideA, true
	case ChoiceB:
		return SideB, true
	}
	return "", false
}

// RequestKind distinguishes resolution from cancellation requests.
type RequestKind string

const (
	RequestResolve RequestKind = "resolve"
	RequestCancel  RequestKind = "cancel"
)

// ConsensusRequest is an explicit proposal that both participants must
// confirm before it takes effect.
type ConsensusRequest struct {
	ID             string      `json:"id"`
	WagerID        int64       `json:"wagerId"`
	Kind           RequestKind `json:"kind"`
	ProposedWinner Side        `json:"proposedWinner,omitempty"`
	ProposerID     string      `json:"proposerId"`
	SideAConfirmed bool        `json:"sideAConfirmed"`
	SideBConfirmed bool        `json:"sideBConfirmed"`
	ExternalRef    string      `json:"externalRef,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	ExpiresAt      time.Time   `json:"expiresAt"`
}

func (r *ConsensusRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

func (r *ConsensusRequest) Confirmed(s Side) bool {
	if s == SideA {
		return r.SideAConfirmed
	}
	return r.SideBConfirmed
}

// Complete reports whether both sides have confirmed.
func (r *ConsensusRequest) Complete() bool {
	return r.SideAConfirmed && r.SideBConfirmed
}

// Choice maps the request onto the equivalent vote.
func (r *ConsensusRequest) Choice() Choice {
	if r.Kind == RequestCancel {
		return ChoiceCancel
	}
	return Choice(r.ProposedWinner)
}

// UserStats are accrued only by resolution commits.
type UserStats struct {
	UserID        string          `json:"userId"`
	DisplayName   string          `json:"displayName"`
	TotalWagers   int             `json:"totalWagers"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	TotalStaked   decimal.Decimal `json:"totalStaked"`
	TotalReturned decimal.Decimal `json:"totalReturned"`
	TotalLost     decimal.Decimal `json:"totalLost"`
	NetProfit     decimal.Decimal `json:"netProfit"`
}

// WinRate in percent, zero when nothing has been settled.
func (s *UserStats) WinRate() decimal.Decimal {
	settled := s.Wins + s.Losses
	if settled == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Wins)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(settled))).
		Round(1)
}

// StatsDelta is what one resolution adds to one participant.
type StatsDelta struct {
	Won      bool
	Staked   decimal.Decimal
	Returned decimal.Decimal
	Lost     decimal.Decimal
}

// Apply folds d into s. NetProfit stays TotalReturned - TotalLost.
func (s *UserStats) Apply(d StatsDelta) {
	s.TotalWagers++
	if d.Won {
		s.Wins++
	} else {
		s.Losses++
	}
	s.TotalStaked = s.TotalStaked.Add(d.Staked)
	s.TotalReturned = s.TotalReturned.Add(d.Returned)
	s.TotalLost = s.TotalLost.Add(d.Lost)
	s.NetProfit = s.TotalReturned.Sub(s.TotalLost)
}
