package calendar

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Day returns the calendar date of t, read in t's own location, as midnight UTC.
// All due dates in this package are kept in that form so day arithmetic never
// crosses a DST transition.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return Day(date).AddDate(0, 0, n)
}

// DaysUntil counts whole calendar days from now's date to due's date.
// The time of day of now is ignored; a due date of today yields 0.
func DaysUntil(due, now time.Time) int {
	return int(Day(due).Sub(Day(now)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
