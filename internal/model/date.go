package model

import "time"

// DateFormat is the calendar-date layout used across the ledger.
const DateFormat = "2006-01-02"

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	d := Day(a).Sub(Day(b)).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}
