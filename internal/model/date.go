package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of a CalendarDate.
const DateLayout = "2006-01-02"

// CalendarDate is a calendar day formatted as YYYY-MM-DD.
type CalendarDate string

// DateOf returns the calendar day of t in loc. A nil loc means UTC.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	if loc == nil {
		loc = time.UTC
	}
	return CalendarDate(t.In(loc).Format(DateLayout))
}

// ParseDate validates s and returns it as a CalendarDate.
func ParseDate(s string) (CalendarDate, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return CalendarDate(s), nil
}

func (d CalendarDate) String() string {
	return string(d)
}

func (d CalendarDate) time() (time.Time, bool) {
	t, err := time.Parse(DateLayout, string(d))
	return t, err == nil
}

// AddDays moves the date by n calendar days. An unparsable date is returned unchanged.
func (d CalendarDate) AddDays(n int) CalendarDate {
	t, ok := d.time()
	if !ok {
		return d
	}
	return CalendarDate(t.AddDate(0, 0, n).Format(DateLayout))
}

// Weekday returns the day of week, or false when the date is malformed.
func (d CalendarDate) Weekday() (time.Weekday, bool) {
	t, ok := d.time()
	if !ok {
		return time.Sunday, false
	}
	return t.Weekday(), true
}

// WeekdayName returns the English weekday name ("Monday", ...), or "" when malformed.
func (d CalendarDate) WeekdayName() string {
	wd, ok := d.Weekday()
	if !ok {
		return ""
	}
	return wd.String()
}

// WeekdayNames lists the accepted custom-day names in display order.
var WeekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// IsWeekdayName reports whether s is one of WeekdayNames.
func IsWeekdayName(s string) bool {
	for _, n := range WeekdayNames {
		if n == s {
			return true
		}
	}
	return false
}
