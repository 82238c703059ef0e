package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HiddenAmount replaces a value when the user hides balances.
const HiddenAmount = "•••••"

// FormatCurrency renders amount as Brazilian reais, e.g. "R$ 1.234,56".
func FormatCurrency(amount decimal.Decimal, hidden bool) string {
	if hidden {
		return HiddenAmount
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

// FormatDisplayDate renders an ISO date as dd-MM-yyyy.
// Date-only strings are taken as calendar days, never shifted by time zone.
func FormatDisplayDate(iso string) (string, error) {
	t, err := ParseDate(iso)
	if err != nil {
		return "", err
	}
	return t.Format("02-01-2006"), nil
}

// ParseNumber parses user input that may use a comma as decimal separator.
func ParseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
}

// Today returns the calendar date of now in loc as YYYY-MM-DD.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return FormatDate(now.In(loc))
}
