package habits

import (
	"fmt"

	"todohabit/internal/model"
)

// Milestone streak values.
const (
	WeekStreak  = 7
	MonthStreak = 30
)

type observation struct {
	completions int
	streak      int
}

// Detector turns habit snapshots into achievement events. It fires on the
// exact transition into a milestone value compared with the last snapshot it
// saw, so a jump from 6 to 8 fires nothing. Not safe for concurrent use.
type Detector struct {
	last   map[string]observation
	active []model.Achievement
}

func NewDetector() *Detector {
	return &Detector{last: map[string]observation{}}
}

// Baseline records the current values without emitting anything.
func (d *Detector) Baseline(habits []model.Habit) {
	d.last = make(map[string]observation, len(habits))
	for _, h := range habits {
		d.last[h.ID] = observation{completions: len(h.CompletedDates), streak: h.Streak}
	}
}

// Observe compares habits with the previous snapshot and returns new events.
func (d *Detector) Observe(habits []model.Habit) []model.Achievement {
	next := make(map[string]observation, len(habits))
	var fired []model.Achievement

	for _, h := range habits {
		cur := observation{completions: len(h.CompletedDates), streak: h.Streak}
		prev := d.last[h.ID]
		next[h.ID] = cur

		if cur.completions == 1 && prev.completions != 1 {
			fired = d.emit(fired, model.AchievementFirst, h)
		}
		if cur.streak == WeekStreak && prev.streak != WeekStreak {
			fired = d.emit(fired, model.AchievementWeek, h)
		}
		if cur.streak == MonthStreak && prev.streak != MonthStreak {
			fired = d.emit(fired, model.AchievementMonth, h)
		}
	}

	d.last = next
	return fired
}

func (d *Detector) emit(fired []model.Achievement, kind model.AchievementKind, h model.Habit) []model.Achievement {
	key := model.AchievementKey{Kind: kind, HabitID: h.ID}
	for _, a := range d.active {
		if a.Key == key {
			return fired
		}
	}
	a := newAchievement(key, h.Name)
	d.active = append(d.active, a)
	return append(fired, a)
}

// Active lists events not yet dismissed, oldest first.
func (d *Detector) Active() []model.Achievement {
	return append([]model.Achievement{}, d.active...)
}

// Dismiss removes an active event and reports whether it was present.
func (d *Detector) Dismiss(key model.AchievementKey) bool {
	for i, a := range d.active {
		if a.Key == key {
			d.active = append(d.active[:i], d.active[i+1:]...)
			return true
		}
	}
	return false
}

func newAchievement(key model.AchievementKey, habitName string) model.Achievement {
	a := model.Achievement{Key: key}
	switch key.Kind {
	case model.AchievementFirst:
		a.Title = "First Step"
		a.Description = fmt.Sprintf(`You completed "%s" for the first time!`, habitName)
	case model.AchievementWeek:
		a.Title = "Week Warrior"
		a.Description = fmt.Sprintf(`You maintained a 7-day streak for "%s"!`, habitName)
	case model.AchievementMonth:
		a.Title = "Monthly Master"
		a.Description = fmt.Sprintf(`You maintained a 30-day streak for "%s"!`, habitName)
	}
	return a
}
