// Package balance reconstructs the daily balance series a user sees for a
// month: authoritative server balances with live preview transactions laid
// on top, one entry for every calendar day.
package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// DaysInMonth returns the number of calendar days in month (1-12) of year.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last ISO dates of a month.
func MonthBounds(year, month int) (start, end string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return domain.FormatDate(first), domain.FormatDate(last)
}

// PreviewImpact sums the signed amounts of previews per date, keeping only
// dates inside [start, end].
func PreviewImpact(previews []domain.PreviewTransaction, start, end string) map[string]decimal.Decimal {
	impact := make(map[string]decimal.Decimal)
	for _, p := range previews {
		if p.TransactionDate < start || p.TransactionDate > end {
			continue
		}
		impact[p.TransactionDate] = impact[p.TransactionDate].Add(p.SignedAmount())
	}
	return impact
}

// Reconstruct produces exactly one balance per calendar day of the month, in
// ascending order.
//
// Walking day 1 to the last day once:
//   - a day the server returned gets its server balance plus the cumulative
//     preview impact from day 1 through that day;
//   - a day the server omitted gets the previous reconstructed balance plus
//     only that day's own preview impact (day 1 starts from zero).
//
// With prefs the status is reclassified from the new balance. Without prefs
// server days keep the server status and synthesized days have none.
func Reconstruct(server []domain.DailyBalance, previews []domain.PreviewTransaction, year, month int, prefs *domain.UserPreferences) []domain.DailyBalance {
	if month < 1 || month > 12 {
		return nil
	}

	start, end := MonthBounds(year, month)
	impact := PreviewImpact(previews, start, end)

	byDate := make(map[string]domain.DailyBalance, len(server))
	for _, b := range server {
		byDate[b.Date] = b
	}

	days := DaysInMonth(year, month)
	out := make([]domain.DailyBalance, 0, days)
	cumulative := decimal.Zero
	prev := decimal.Zero

	for d := 1; d <= days; d++ {
		date := domain.FormatDate(time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC))
		dayImpact := impact[date]
		cumulative = cumulative.Add(dayImpact)

		var (
			bal    decimal.Decimal
			status domain.BalanceStatus
		)
		if sb, ok := byDate[date]; ok {
			bal = sb.Balance.Add(cumulative)
			status = sb.Status
		} else {
			bal = prev.Add(dayImpact)
			status = domain.StatusNone
		}
		if prefs != nil {
			status = prefs.Classify(bal)
		}

		out = append(out, domain.DailyBalance{Date: date, Balance: bal, Status: status})
		prev = bal
	}
	return out
}
