package commands

import (
	"strconv"
	"strings"

	"wagerbot/internal/wager"
)

// ActionKind is what a button press or reaction asks the core to do.
type ActionKind int

const (
	ActionJoinSide ActionKind = iota + 1
	ActionCastVote
	ActionConfirm
)

// Action is resolved once from a component id or reaction, before any call
// into the wager core.
type Action struct {
	Kind      ActionKind
	WagerID   int64
	Side      wager.Side
	Choice    wager.Choice
	RequestID string
}

const (
	joinPrefix    = "wager_join_"
	votePrefix    = "wager_vote_"
	confirmPrefix = "wager_confirm_"

	// ConfirmEmoji confirms a request when added to its announcement.
	ConfirmEmoji = "✅"
	// CancelEmoji votes to cancel when added to an active wager's message.
	CancelEmoji = "🚫"
)

func JoinButtonID(wagerID int64, side wager.Side) string {
	return joinPrefix + strconv.FormatInt(wagerID, 10) + "_" + string(side)
}

func VoteButtonID(wagerID int64, choice wager.Choice) string {
	return votePrefix + strconv.FormatInt(wagerID, 10) + "_" + string(choice)
}

func ConfirmButtonID(requestID string) string {
	return confirmPrefix + requestID
}

// ParseCustomID maps a button custom id back to an Action.
func ParseCustomID(customID string) (Action, bool) {
	switch {
	case strings.HasPrefix(customID, joinPrefix):
		id, rest, ok := splitWagerID(strings.TrimPrefix(customID, joinPrefix))
		side := wager.Side(rest)
		if !ok || !side.Valid() {
			return Action{}, false
		}
		return Action{Kind: ActionJoinSide, WagerID: id, Side: side}, true

	case strings.HasPrefix(customID, votePrefix):
		id, rest, ok := splitWagerID(strings.TrimPrefix(customID, votePrefix))
		choice := wager.Choice(rest)
		if !ok || !choice.Valid() {
			return Action{}, false
		}
		return Action{Kind: ActionCastVote, WagerID: id, Choice: choice}, true

	case strings.HasPrefix(customID, confirmPrefix):
		reqID := strings.TrimPrefix(customID, confirmPrefix)
		if reqID == "" {
			return Action{}, false
		}
		return Action{Kind: ActionConfirm, RequestID: reqID}, true
	}
	return Action{}, false
}

func splitWagerID(s string) (int64, string, bool) {
	raw, rest, found := strings.Cut(s, "_")
	if !found {
		return 0, "", false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, rest, true
}

// Emojis returns the reaction pair used to pick side A and side B.
func Emojis(c wager.Category) (sideA, sideB string) {
	switch c {
	case wager.CategoryGame:
		return "✈️", "🏠"
	case wager.CategoryProp:
		return "✅", "❌"
	case wager.CategoryFuture:
		return "🎯", "🎲"
	default:
		return "1️⃣", "2️⃣"
	}
}

// SideForEmoji maps a reaction on the wager's own message to a side.
func SideForEmoji(c wager.Category, emoji string) (wager.Side, bool) {
	a, b := Emojis(c)
	switch normalizeEmoji(emoji) {
	case normalizeEmoji(a):
		return wager.SideA, true
	case normalizeEmoji(b):
		return wager.SideB, true
	}
	return "", false
}

// normalizeEmoji drops the variation selector Discord sometimes strips.
func normalizeEmoji(s string) string {
	return strings.TrimSuffix(s, "\uFE0F")
}

// ReactionAction resolves a reaction on a wager's message: a side emoji
// joins a pending wager and votes on an active one, CancelEmoji votes to
// cancel. Reactions on settled wagers mean nothing.
func ReactionAction(w *wager.Wager, emoji string) (Action, bool) {
	switch w.Status {
	case wager.StatusPending:
		side, ok := SideForEmoji(w.Category, emoji)
		if !ok {
			return Action{}, false
		}
		return Action{Kind: ActionJoinSide, WagerID: w.ID, Side: side}, true

	case wager.StatusActive:
		if normalizeEmoji(emoji) == normalizeEmoji(CancelEmoji) {
			return Action{Kind: ActionCastVote, WagerID: w.ID, Choice: wager.ChoiceCancel}, true
		}
		side, ok := SideForEmoji(w.Category, emoji)
		if !ok {
			return Action{}, false
		}
		return Action{Kind: ActionCastVote, WagerID: w.ID, Choice: wager.Choice(side)}, true
	}
	return Action{}, false
}

// RequestReactionAction resolves a reaction on a request's announcement.
func RequestReactionAction(r *wager.ConsensusRequest, emoji string) (Action, bool) {
	if normalizeEmoji(emoji) != normalizeEmoji(ConfirmEmoji) {
		return Action{}, false
	}
	return Action{Kind: ActionConfirm, RequestID: r.ID}, true
}
