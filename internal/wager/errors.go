package wager

import "errors"

var (
	ErrInvalidAmount    = errors.New("base amount must be greater than zero")
	ErrInvalidCategory  = errors.New("category must be game, prop or future")
	ErrInvalidSide      = errors.New("side must be A or B")
	ErrInvalidChoice    = errors.New("choice must be A, B or cancel")
	ErrSideTaken        = errors.New("that side is already taken")
	ErrSelfWager        = errors.New("cannot take both sides of a wager")
	ErrNotActive        = errors.New("wager is not active")
	ErrNotPending       = errors.New("wager is not pending")
	ErrUnauthorized     = errors.New("not a participant of this wager")
	ErrDuplicateRequest = errors.New("a request is already open for this wager")
	ErrNotFound         = errors.New("not found")
)

// Code returns a short stable label for err, used for metrics and logs.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, ErrSideTaken):
		return "side_taken"
	case errors.Is(err, ErrSelfWager):
		return "self_wager"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrNotPending):
		return "not_pending"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}

// IsDomain reports whether err is one of the package's rule violations
// rather than a storage failure.
func IsDomain(err error) bool {
	c := Code(err)
	return c != "ok" && c != "internal"
}
