package domain

import "time"

// ─── Recurring Schedule ─────────────────────────────────────────────────────

// First returns the first occurrence on or after the start date.
//
// Weekly rules with a weekday move forward to that weekday. Monthly rules
// use DayOfMonth (or the start day) clamped to the month's length, moving
// one interval ahead when that day falls before the start date.
func (r RecurringCreate) First() (time.Time, error) {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return time.Time{}, err
	}
	switch r.Frequency {
	case Weekly:
		if r.Weekday != nil {
			shift := (*r.Weekday - int(start.Weekday()) + 7) % 7
			return start.AddDate(0, 0, shift), nil
		}
	case Monthly:
		first := monthDay(start.Year(), start.Month(), r.dayOfMonth(start))
		if first.Before(start) {
			first = r.Next(first)
		}
		return first, nil
	}
	return start, nil
}

// Next returns the occurrence following t.
func (r RecurringCreate) Next(t time.Time) time.Time {
	n := r.Interval
	if n < 1 {
		n = 1
	}
	switch r.Frequency {
	case Weekly:
		return t.AddDate(0, 0, 7*n)
	case Monthly:
		y, m := t.Year(), t.Month()+time.Month(n)
		return monthDay(y, m, r.dayOfMonth(t))
	default:
		return t.AddDate(0, 0, n)
	}
}

// Ended reports whether t is past the rule's end date.
func (r RecurringCreate) Ended(t time.Time) bool {
	if r.EndDate == nil {
		return false
	}
	end, err := ParseDate(*r.EndDate)
	if err != nil {
		return false
	}
	return t.After(end)
}

func (r RecurringCreate) dayOfMonth(fallback time.Time) int {
	if r.DayOfMonth != nil {
		return *r.DayOfMonth
	}
	if start, err := ParseDate(r.StartDate); err == nil {
		return start.Day()
	}
	return fallback.Day()
}

// monthDay builds y-m-day, clamping day to the month's last day.
// m may overflow 12; time.Date normalizes it.
func monthDay(y int, m time.Month, day int) time.Time {
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
