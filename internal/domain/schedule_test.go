package domain

import "testing"

func intPtr(v int) *int { return &v }

func TestRecurringSchedule(t *testing.T) {
	tests := []struct {
		name string
		rule RecurringCreate
		want []string
	}{
		{
			name: "daily every 2 days",
			rule: RecurringCreate{Frequency: Daily, Interval: 2, StartDate: "2024-03-30"},
			want: []string{"2024-03-30", "2024-04-01", "2024-04-03"},
		},
		{
			name: "weekly on friday from a monday",
			rule: RecurringCreate{Frequency: Weekly, Interval: 1, StartDate: "2024-03-04", Weekday: intPtr(5)},
			want: []string{"2024-03-08", "2024-03-15", "2024-03-22"},
		},
		{
			name: "monthly on the 31st clamps short months",
			rule: RecurringCreate{Frequency: Monthly, Interval: 1, StartDate: "2024-01-31"},
			want: []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
		},
		{
			name: "monthly day before start moves to next period",
			rule: RecurringCreate{Frequency: Monthly, Interval: 2, StartDate: "2024-11-20", DayOfMonth: intPtr(5)},
			want: []string{"2025-01-05", "2025-03-05"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.rule.First()
			if err != nil {
				t.Fatalf("First() error: %v", err)
			}
			for i, want := range tt.want {
				if got := FormatDate(d); got != want {
					t.Errorf("occurrence %d = %s, want %s", i, got, want)
				}
				d = tt.rule.Next(d)
			}
		})
	}
}

func TestRecurringEnded(t *testing.T) {
	end := "2024-03-31"
	r := RecurringCreate{EndDate: &end}
	last, _ := ParseDate("2024-03-31")
	after, _ := ParseDate("2024-04-01")

	if r.Ended(last) {
		t.Error("end date itself should still be included")
	}
	if !r.Ended(after) {
		t.Error("day after end date should be ended")
	}
	if (RecurringCreate{}).Ended(after) {
		t.Error("open-ended rule should never end")
	}
}
