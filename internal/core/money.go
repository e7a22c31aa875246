// Package core holds the ledger domain: money in grosze, registers, debts,
// group transactions and the vote evaluation rules.
//
// All balances and amounts are int64 grosze (minor units). Floating point
// never touches a stored value; decimal user input is parsed exactly and
// rounded once, at the boundary.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in grosze.
type Money struct {
	Grosze int64
}

func (m Money) String() string {
	return Format(m.Grosze)
}

// Format renders grosze as a fixed-point zloty string with exactly two minor
// digits and the sign preserved: 120 -> "1.20", -4 -> "-0.04", 0 -> "0.00".
func Format(grosze int64) string {
	sign := ""
	if grosze < 0 {
		sign = "-"
		grosze = -grosze
	}
	major := grosze / 100
	minor := grosze % 100
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(strconv.FormatInt(major, 10))
	b.WriteByte('.')
	if minor < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(minor, 10))
	return b.String()
}

// ParseDecimalToGrosze converts a decimal zloty string to grosze.
//
// Both dot (12.34) and comma (12,34) separators are accepted, as are signed
// values. Anything beyond two fractional digits is rounded half away from
// zero, so "0.005" -> 1 and "-0.005" -> -1. Returns ErrInvalidAmount for
// malformed input.
func ParseDecimalToGrosze(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Round rounds half away from zero.
	g := d.Shift(2).Round(0)
	if !g.IsInteger() || !g.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return g.IntPart(), nil
}
