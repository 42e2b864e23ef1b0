package odds

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from strings.
func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "2"},
		{"   ", "2"},
		{"+150", "2.5"},
		{"-200", "1.5"},
		{"-110", "1.9091"},
		{"+100", "2"},
		{"-100", "2"},
		{"2.5", "2.5"},
		{" 1.91 ", "1.91"},
		{"1.01", "1.01"},
		{"1.0", "2"},
		{"0.5", "2"},
		{"abc", "2"},
		{"+abc", "2"},
		{"-0", "2"},
		{"+0", "2"},
		{"-20000", "2"},
	}

	for _, tt := range tests {
		got := Normalize(tt.input)
		if !got.Equal(d(tt.expected)) {
			t.Errorf("Normalize(%q) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"", "+150", "-110", "1.01", "3"}
	for _, in := range valid {
		if !IsValid(in) {
			t.Errorf("IsValid(%q) = false, expected true", in)
		}
	}

	invalid := []string{"1.0", "abc", "-0", "+x", "0.99"}
	for _, in := range invalid {
		if IsValid(in) {
			t.Errorf("IsValid(%q) = true, expected false", in)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		odds     string
		expected string
	}{
		{"2.5", "+150"},
		{"2", "+100"},
		{"1.5", "-200"},
		{"1.9091", "-110"},
		{"1.25", "-400"},
		{"11", "+1000"},
		{"1.01", "-10000"},
	}

	for _, tt := range tests {
		if got := Format(d(tt.odds)); got != tt.expected {
			t.Errorf("Format(%s) = %s, expected %s", tt.odds, got, tt.expected)
		}
	}
}

func TestFormat_ClampsBelowMinimum(t *testing.T) {
	if got := Format(d("1")); got != "-10000" {
		t.Errorf("Format(1) = %s, expected -10000", got)
	}
}

func TestDisplay(t *testing.T) {
	if got := Display(d("2.5")); got != "+150 (2.50x)" {
		t.Errorf("Display(2.5) = %q", got)
	}
	if got := Display(d("1.9091")); got != "-110 (1.91x)" {
		t.Errorf("Display(1.9091) = %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	tolerance := d("0.01")

	// Walk the decimal range in small steps; American rounding may drift
	// but never by more than a cent of odds.
	for odds := d("1.01"); odds.LessThanOrEqual(d("20")); odds = odds.Add(d("0.037")) {
		back := Normalize(Format(odds))
		if back.Sub(odds).Abs().GreaterThan(tolerance) {
			t.Errorf("round trip of %s gave %s (via %s)", odds, back, Format(odds))
		}
	}
}
