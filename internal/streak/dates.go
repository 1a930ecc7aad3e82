package streak

import "time"

// midnight zeroes the clock of t in its own location
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the calendar-day difference to - from. Each time is read
// as the date on its own wall clock, so any moment yesterday is exactly 1
// whatever zone either side was recorded in.
func DaysBetween(from, to time.Time) int {
	return int(civil(to).Sub(civil(from)) / (24 * time.Hour))
}

// civil maps the wall-clock date of t onto UTC midnight, where every day is
// exactly 24 hours long
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
