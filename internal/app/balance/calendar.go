package balance

import (
	"time"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// CalendarDay is one cell of a month grid.
type CalendarDay struct {
	Date    string               `json:"date"`
	Day     int                  `json:"day"`
	InMonth bool                 `json:"in_month"`
	IsToday bool                 `json:"is_today"`
	Balance *domain.DailyBalance `json:"balance,omitempty"`
}

// CalendarGrid returns the days shown for a month: leading days of the
// previous month back to Sunday, every day of the month, then trailing days
// of the next month up to Saturday.
func CalendarGrid(year, month int) []time.Time {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for i := int(first.Weekday()); i > 0; i-- {
		days = append(days, first.AddDate(0, 0, -i))
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	for i := 1; i < 7-int(last.Weekday()); i++ {
		days = append(days, last.AddDate(0, 0, i))
	}
	return days
}

// BalanceFor finds the entry for date in series.
func BalanceFor(date string, series []domain.DailyBalance) (domain.DailyBalance, bool) {
	for _, b := range series {
		if b.Date == date {
			return b, true
		}
	}
	return domain.DailyBalance{}, false
}

// BuildCalendar lays a reconstructed series over the month grid.
// Padding days outside the month carry no balance.
func BuildCalendar(year, month int, series []domain.DailyBalance, today string) []CalendarDay {
	grid := CalendarGrid(year, month)
	out := make([]CalendarDay, 0, len(grid))
	for _, d := range grid {
		date := domain.FormatDate(d)
		cell := CalendarDay{
			Date:    date,
			Day:     d.Day(),
			InMonth: int(d.Month()) == month,
			IsToday: date == today,
		}
		if cell.InMonth {
			if b, ok := BalanceFor(date, series); ok {
				cell.Balance = &b
			}
		}
		out = append(out, cell)
	}
	return out
}
