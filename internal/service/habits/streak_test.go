package habits

import (
	"testing"

	"todohabit/internal/model"
)

func datesBack(end model.CalendarDate, n int) []model.CalendarDate {
	out := make([]model.CalendarDate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, end.AddDays(-i))
	}
	return out
}

func TestComputeStreakRunPlusGap(t *testing.T) {
	today := model.CalendarDate("2024-03-10")

	for k := 0; k <= 6; k++ {
		dates := datesBack(today, k+1)
		// gap of one day, then an older run that must not count
		gapped := today.AddDays(-(k + 2))
		dates = append(dates, gapped.AddDays(-1), gapped.AddDays(-2))

		if got := ComputeStreak(dates); got != k+1 {
			t.Errorf("k=%d: ComputeStreak = %d, want %d", k, got, k+1)
		}
	}
}

func TestComputeStreakEmpty(t *testing.T) {
	if got := ComputeStreak(nil); got != 0 {
		t.Errorf("ComputeStreak(nil) = %d, want 0", got)
	}
	if got := ComputeStreak([]model.CalendarDate{}); got != 0 {
		t.Errorf("ComputeStreak([]) = %d, want 0", got)
	}
}

func TestComputeStreakUnsortedInput(t *testing.T) {
	dates := []model.CalendarDate{"2024-03-09", "2024-03-10", "2024-03-01", "2024-03-08"}
	if got := ComputeStreak(dates); got != 3 {
		t.Errorf("ComputeStreak = %d, want 3", got)
	}
}

func TestComputeStreakBoundedWalk(t *testing.T) {
	dates := datesBack("2024-12-31", 150)
	if got := ComputeStreak(dates); got != maxStreakWalk+1 {
		t.Errorf("ComputeStreak = %d, want %d", got, maxStreakWalk+1)
	}
}

func TestComputeStreakIgnoresMalformedDates(t *testing.T) {
	if got := ComputeStreak([]model.CalendarDate{"garbage"}); got != 0 {
		t.Errorf("ComputeStreak(garbage) = %d, want 0", got)
	}
	if got := ComputeStreak([]model.CalendarDate{"2024-03-10", "zzz", "2024-03-09"}); got != 2 {
		t.Errorf("ComputeStreak = %d, want 2", got)
	}
}

func TestWeeklyEligibleOnlyOnMonday(t *testing.T) {
	weekly := model.Habit{Frequency: model.FrequencyWeekly}
	// 2024-03-04 is a Monday.
	monday := model.CalendarDate("2024-03-04")
	for i := 0; i < 7; i++ {
		day := monday.AddDays(i)
		want := i == 0
		if got := IsEligibleToday(weekly, day); got != want {
			t.Errorf("%s (%s): eligible = %v, want %v", day, day.WeekdayName(), got, want)
		}
	}
}

func TestEligibility(t *testing.T) {
	tuesday := model.CalendarDate("2024-03-05")
	tests := []struct {
		name  string
		habit model.Habit
		want  bool
	}{
		{name: "daily", habit: model.Habit{Frequency: model.FrequencyDaily}, want: true},
		{name: "custom Run on Tuesday", habit: model.Habit{Name: "Run", Frequency: model.FrequencyCustom, CustomDays: []string{"Monday", "Wednesday"}}, want: false},
		{name: "custom includes Tuesday", habit: model.Habit{Frequency: model.FrequencyCustom, CustomDays: []string{"Tuesday"}}, want: true},
		{name: "unknown frequency", habit: model.Habit{Frequency: "hourly"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligibleToday(tt.habit, tuesday); got != tt.want {
				t.Errorf("IsEligibleToday = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToggleCompletionIncrementalAddPath(t *testing.T) {
	today := model.CalendarDate("2024-03-10")
	tests := []struct {
		name       string
		dates      []model.CalendarDate
		streak     int
		wantStreak int
	}{
		{name: "first completion", dates: nil, streak: 0, wantStreak: 1},
		{name: "extends yesterday", dates: []model.CalendarDate{"2024-03-09", "2024-03-08"}, streak: 2, wantStreak: 3},
		{name: "gap resets", dates: []model.CalendarDate{"2024-03-07"}, streak: 4, wantStreak: 1},
		{name: "stale zero streak increments", dates: []model.CalendarDate{"2024-03-01"}, streak: 0, wantStreak: 1},
		{name: "stale cached value is not revalidated", dates: []model.CalendarDate{"2024-03-09"}, streak: 9, wantStreak: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := model.Habit{ID: "h", Frequency: model.FrequencyDaily, CompletedDates: tt.dates, Streak: tt.streak}
			got := ToggleCompletion(h, today)
			if !got.HasCompleted(today) {
				t.Fatal("today not added")
			}
			if got.Streak != tt.wantStreak {
				t.Errorf("streak = %d, want %d", got.Streak, tt.wantStreak)
			}
			if len(h.CompletedDates) != len(tt.dates) {
				t.Error("input habit was mutated")
			}
		})
	}
}

func TestToggleTwiceRestoresMembershipButNotStreak(t *testing.T) {
	today := model.CalendarDate("2024-03-04")
	// Cached streak of 0 is stale: a full recompute of these dates gives 2.
	h := model.Habit{ID: "h", Frequency: model.FrequencyDaily, CompletedDates: []model.CalendarDate{"2024-03-02", "2024-03-03"}, Streak: 0}

	added := ToggleCompletion(h, today)
	if added.Streak != 1 {
		t.Errorf("add path streak = %d, want 1 (incremental)", added.Streak)
	}
	if ComputeStreak(added.CompletedDates) != 3 {
		t.Errorf("full recompute = %d, want 3", ComputeStreak(added.CompletedDates))
	}

	removed := ToggleCompletion(added, today)
	if removed.HasCompleted(today) {
		t.Error("second toggle must remove today")
	}
	if len(removed.CompletedDates) != len(h.CompletedDates) {
		t.Errorf("membership not restored: %v", removed.CompletedDates)
	}
	if removed.Streak != 2 {
		t.Errorf("remove path streak = %d, want 2 (recomputed)", removed.Streak)
	}

	// Starting from completed: remove then add.
	done := model.Habit{ID: "h", Frequency: model.FrequencyDaily, CompletedDates: []model.CalendarDate{"2024-03-03", "2024-03-04"}, Streak: 2}
	back := ToggleCompletion(ToggleCompletion(done, today), today)
	if !back.HasCompleted(today) || len(back.CompletedDates) != 2 {
		t.Errorf("membership not restored: %v", back.CompletedDates)
	}
	if back.Streak != 2 {
		t.Errorf("streak = %d, want 2", back.Streak)
	}
}
