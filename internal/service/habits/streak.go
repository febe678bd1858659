package habits

import (
	"sort"

	"todohabit/internal/model"
)

// maxStreakWalk bounds the backward walk in ComputeStreak.
const maxStreakWalk = 100

// IsEligibleToday applies the frequency rule: daily always, weekly only on
// Monday, custom on the listed weekday names.
func IsEligibleToday(h model.Habit, today model.CalendarDate) bool {
	switch h.Frequency {
	case model.FrequencyDaily:
		return true
	case model.FrequencyWeekly:
		wd, ok := today.Weekday()
		return ok && wd == model.WeeklyAnchor
	case model.FrequencyCustom:
		name := today.WeekdayName()
		for _, d := range h.CustomDays {
			if d == name {
				return true
			}
		}
	}
	return false
}

// ToggleCompletion flips today's completion and returns the updated habit.
//
// Removing today recomputes the streak from scratch. Adding today extends the
// cached streak when yesterday was completed or the streak was zero, and
// otherwise restarts it at 1; the cached value is not re-validated.
func ToggleCompletion(h model.Habit, today model.CalendarDate) model.Habit {
	h = h.Clone()

	if h.HasCompleted(today) {
		dates := make([]model.CalendarDate, 0, len(h.CompletedDates))
		for _, d := range h.CompletedDates {
			if d != today {
				dates = append(dates, d)
			}
		}
		h.CompletedDates = dates
		h.Streak = ComputeStreak(dates)
		return h
	}

	yesterday := today.AddDays(-1)
	if h.HasCompleted(yesterday) || h.Streak == 0 {
		h.Streak++
	} else {
		h.Streak = 1
	}
	h.CompletedDates = append(h.CompletedDates, today)
	return h
}

// ComputeStreak counts consecutive days ending at the latest date. Malformed
// dates are ignored.
func ComputeStreak(dates []model.CalendarDate) int {
	present := make(map[model.CalendarDate]bool, len(dates))
	valid := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := d.Weekday(); !ok {
			continue
		}
		present[d] = true
		valid = append(valid, string(d))
	}
	if len(valid) == 0 {
		return 0
	}
	sort.Strings(valid)
	anchor := model.CalendarDate(valid[len(valid)-1])

	streak := 1
	for i := 1; i <= maxStreakWalk; i++ {
		if !present[anchor.AddDays(-i)] {
			break
		}
		streak++
	}
	return streak
}
