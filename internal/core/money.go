// Package core holds the SmartLedger domain types: expense categories, the
// persisted-collection codec and KRW amount helpers.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseWon converts a user-entered amount string to whole KRW. Thousands
// separators (commas) and surrounding whitespace are tolerated; signs,
// decimals and non-digits are not.
func ParseWon(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrNegativeAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrNegativeAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNegativeAmount
	}
	return v, nil
}

// FormatWon renders an amount as a display string with thousands separators
// and the won sign, e.g. 1234567 -> "1,234,567원".
func FormatWon(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String() + "원"
	if neg {
		return "-" + out
	}
	return out
}
