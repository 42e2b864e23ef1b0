// Package odds parses odds notation and converts between American and
// decimal representations.
package odds

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// MinDecimal is the lowest decimal odds a wager side can carry.
	MinDecimal = decimal.RequireFromString("1.01")
	// EvenMoney is used whenever the input is missing or invalid.
	EvenMoney = decimal.NewFromInt(2)

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Precision is the number of decimal places kept on normalized odds.
const Precision = 4

// Normalize converts American ("+150", "-110") or decimal ("2.5") notation
// into decimal odds. Empty, unparsable or out of range input silently becomes
// EvenMoney; use IsValid first when strict validation is needed.
func Normalize(input string) decimal.Decimal {
	s := strings.TrimSpace(input)
	if s == "" {
		return EvenMoney
	}

	if isAmerican(s) {
		d, ok := fromAmerican(s)
		if !ok {
			return EvenMoney
		}
		return d
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.LessThan(MinDecimal) {
		return EvenMoney
	}
	return d.Round(Precision)
}

// IsValid reports whether Normalize would accept the input as written
// instead of falling back to EvenMoney. Empty input is valid (even money).
func IsValid(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return true
	}
	if isAmerican(s) {
		_, ok := fromAmerican(s)
		return ok
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.GreaterThanOrEqual(MinDecimal)
}

// Format renders decimal odds as American notation.
func Format(d decimal.Decimal) string {
	if d.LessThan(MinDecimal) {
		d = MinDecimal
	}
	if d.GreaterThanOrEqual(EvenMoney) {
		return "+" + d.Sub(one).Mul(hundred).Round(0).String()
	}
	return "-" + hundred.Div(d.Sub(one)).Round(0).String()
}

// Display renders both notations, e.g. "+150 (2.50x)".
func Display(d decimal.Decimal) string {
	return Format(d) + " (" + d.StringFixed(2) + "x)"
}

func isAmerican(s string) bool {
	return strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
}

func fromAmerican(s string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil || v.IsZero() {
		return decimal.Zero, false
	}

	var d decimal.Decimal
	if v.IsPositive() {
		d = v.Div(hundred).Add(one)
	} else {
		d = hundred.Div(v.Abs()).Add(one)
	}
	d = d.Round(Precision)

	if d.LessThan(MinDecimal) {
		return decimal.Zero, false
	}
	return d, true
}
