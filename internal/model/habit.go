package model

import "time"

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

// WeeklyAnchor is the only weekday on which a weekly habit can be completed.
const WeeklyAnchor = time.Monday

type Habit struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Frequency      Frequency      `json:"frequency"`
	CustomDays     []string       `json:"customDays,omitempty"`
	Streak         int            `json:"streak"`
	CompletedDates []CalendarDate `json:"completedDates"`
	Reminder       *time.Time     `json:"reminder"`
	ReminderShown  bool           `json:"reminderShown"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Clone returns a deep copy. CompletedDates is never nil in the copy.
func (h Habit) Clone() Habit {
	if h.CustomDays != nil {
		h.CustomDays = append([]string(nil), h.CustomDays...)
	}
	dates := make([]CalendarDate, len(h.CompletedDates))
	copy(dates, h.CompletedDates)
	h.CompletedDates = dates
	if h.Reminder != nil {
		r := *h.Reminder
		h.Reminder = &r
	}
	return h
}

// HasCompleted reports whether day is in CompletedDates.
func (h Habit) HasCompleted(day CalendarDate) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

// CloneHabits deep-copies a habit slice and never returns nil.
func CloneHabits(in []Habit) []Habit {
	out := make([]Habit, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
