// Package events defines the status events emitted by the wager core and the
// Notifier sinks consume them through.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind of status event.
type Kind string

const (
	WagerCreated         Kind = "wager_created"
	WagerJoined          Kind = "wager_joined"
	WagerActivated       Kind = "wager_activated"
	VoteCast             Kind = "vote_cast"
	ResolutionProposed   Kind = "resolution_proposed"
	CancellationProposed Kind = "cancellation_proposed"
	RequestConfirmed     Kind = "request_confirmed"
	WagerResolved        Kind = "wager_resolved"
	WagerCancelled       Kind = "wager_cancelled"
)

// Topic is the default pub/sub channel and kafka topic for status events.
const Topic = "wager_status"

// Event is a flat snapshot so sinks never need the core types.
type Event struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	WagerID      int64     `json:"wager_id"`
	RequestID    string    `json:"request_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Choice       string    `json:"choice,omitempty"`
	Committed    bool      `json:"committed"`
	Outcome      string    `json:"outcome,omitempty"`
	PendingFrom  []string  `json:"pending_from,omitempty"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status,omitempty"`
	TotalPot     string    `json:"total_pot,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh id and time.
func New(kind Kind, wagerID int64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		WagerID:    wagerID,
		OccurredAt: at.UTC(),
	}
}

// Terminal reports whether the event closes the wager.
func (e Event) Terminal() bool {
	return e.Kind == WagerResolved || e.Kind == WagerCancelled
}

// Notifier receives status events after the change that caused them is
// committed. Implementations must not block the caller for long; delivery
// failures are theirs to log.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Multi fans an event out to every notifier in order, on the caller's
// goroutine. Network sinks belong behind a notify.Queue.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
