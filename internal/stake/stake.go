// Package stake computes balanced peer-to-peer stakes for a two-sided wager.
//
// The side with the higher decimal odds (the underdog) stakes the base
// amount. The favourite stakes exactly what the underdog would win, and wins
// exactly what the underdog staked, so there is no house spread: whoever
// wins takes the whole pot.
package stake

import "github.com/shopspring/decimal"

// MoneyPlaces is the precision money amounts are rounded to.
const MoneyPlaces = 2

var one = decimal.NewFromInt(1)

// Split is the stake layout of both sides of a wager.
type Split struct {
	StakeA decimal.Decimal
	ToWinA decimal.Decimal
	StakeB decimal.Decimal
	ToWinB decimal.Decimal

	// UnderdogA is true when side A carries the higher odds.
	UnderdogA bool
	// Even is true when both sides carry the same odds.
	Even bool
}

// TotalPot is what the winner walks away with.
func (s Split) TotalPot() decimal.Decimal {
	return s.StakeA.Add(s.StakeB)
}

// Balance derives the split for base and the two decimal odds. Equal odds
// give a classic even pot where both sides stake base.
func Balance(base, oddsA, oddsB decimal.Decimal) Split {
	base = base.Round(MoneyPlaces)

	if oddsA.Equal(oddsB) {
		return Split{
			StakeA: base,
			ToWinA: base,
			StakeB: base,
			ToWinB: base,
			Even:   true,
		}
	}

	underdogOdds := decimal.Max(oddsA, oddsB)
	stakeU := base
	toWinU := base.Mul(underdogOdds.Sub(one)).Round(MoneyPlaces)
	stakeF := toWinU
	toWinF := stakeU

	if oddsA.GreaterThan(oddsB) {
		return Split{
			StakeA:    stakeU,
			ToWinA:    toWinU,
			StakeB:    stakeF,
			ToWinB:    toWinF,
			UnderdogA: true,
		}
	}
	return Split{
		StakeA: stakeF,
		ToWinA: toWinF,
		StakeB: stakeU,
		ToWinB: toWinU,
	}
}
