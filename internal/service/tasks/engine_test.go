package tasks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
)

var baseTime = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

type changeRecorder struct {
	mu        sync.Mutex
	snapshots [][]model.Task
}

func (r *changeRecorder) record(tasks []model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, tasks)
}

func (r *changeRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func newTestEngine(initial []model.Task) (*Engine, *changeRecorder) {
	e := NewEngine(initial, func() time.Time { return baseTime }, zap.NewNop())
	rec := &changeRecorder{}
	e.OnChange(rec.record)
	return e, rec
}

func TestBuyMilkFilterScenario(t *testing.T) {
	e, _ := newTestEngine(nil)
	if _, err := e.Add(Input{Text: "Write report", Category: "work"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	milk, err := e.Add(Input{Text: "Buy milk", Category: "shopping"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	shopping := e.Filter("shopping")
	if len(shopping) != 1 || shopping[0].ID != milk.ID {
		t.Fatalf("Filter(shopping) = %+v, want only Buy milk", shopping)
	}

	if _, err := e.ToggleCompleted(milk.ID); err != nil {
		t.Fatalf("ToggleCompleted: %v", err)
	}

	completed := e.Filter(FilterCompleted)
	if len(completed) != 1 || completed[0].ID != milk.ID {
		t.Errorf("Filter(completed) = %+v, want Buy milk", completed)
	}
	for _, task := range e.Filter(FilterActive) {
		if task.ID == milk.ID {
			t.Error("Filter(active) must not contain Buy milk")
		}
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		wantErr  bool
		category string
	}{
		{name: "blank text", in: Input{Text: "   "}, wantErr: true},
		{name: "empty text", in: Input{Text: ""}, wantErr: true},
		{name: "unknown category", in: Input{Text: "x", Category: "errands"}, wantErr: true},
		{name: "default category", in: Input{Text: "x"}, category: "personal"},
		{name: "explicit category", in: Input{Text: "x", Category: "health"}, category: "health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newTestEngine(nil)
			task, err := e.Add(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Add error = %v, want ErrValidation", err)
				}
				if len(e.List()) != 0 || rec.CallCount() != 0 {
					t.Error("rejected add must not mutate or notify")
				}
				return
			}
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
			if task.Category != tt.category || task.Completed || task.ReminderShown {
				t.Errorf("task = %+v", task)
			}
			if !task.CreatedAt.Equal(baseTime) {
				t.Errorf("CreatedAt = %v, want %v", task.CreatedAt, baseTime)
			}
		})
	}
}

func TestIDsUniqueWithinSameMillisecond(t *testing.T) {
	e, _ := newTestEngine(nil)
	a, _ := e.Add(Input{Text: "a"})
	b, _ := e.Add(Input{Text: "b"})
	if a.ID == b.ID {
		t.Fatalf("duplicate id %s", a.ID)
	}
}

func TestUpdateResetsReminderShownOnlyWhenReminderChanges(t *testing.T) {
	r1 := baseTime.Add(-time.Minute)
	r2 := baseTime.Add(time.Hour)
	sameInstant := r1.In(time.FixedZone("X", 3600))

	e, _ := newTestEngine([]model.Task{{ID: "1", Text: "call", Category: "work", Reminder: &r1, ReminderShown: true}})

	got, err := e.Update("1", Update{SetReminder: true, Reminder: &sameInstant})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.ReminderShown {
		t.Error("same instant must keep reminderShown")
	}

	text := "call mom"
	got, _ = e.Update("1", Update{Text: &text})
	if !got.ReminderShown || got.Text != text {
		t.Errorf("text-only update changed reminder state: %+v", got)
	}

	got, _ = e.Update("1", Update{SetReminder: true, Reminder: &r2})
	if got.ReminderShown {
		t.Error("changed reminder must reset reminderShown")
	}
	if !got.Reminder.Equal(r2) {
		t.Errorf("Reminder = %v, want %v", got.Reminder, r2)
	}
}

func TestUnknownTask(t *testing.T) {
	e, _ := newTestEngine(nil)
	if _, err := e.ToggleCompleted("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("ToggleCompleted error = %v", err)
	}
	if err := e.Remove("nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Remove error = %v", err)
	}
	if _, err := e.Update("nope", Update{}); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Update error = %v", err)
	}
}

func TestMutationsNotifyWithFullSnapshot(t *testing.T) {
	e, rec := newTestEngine(nil)
	a, _ := e.Add(Input{Text: "a"})
	_, _ = e.Add(Input{Text: "b"})
	_ = e.Remove(a.ID)

	if rec.CallCount() != 3 {
		t.Fatalf("OnChange calls = %d, want 3", rec.CallCount())
	}
	last := rec.snapshots[2]
	if len(last) != 1 || last[0].Text != "b" {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestMarkReminderShownOnce(t *testing.T) {
	due := baseTime.Add(-time.Minute)
	e, rec := newTestEngine([]model.Task{
		{ID: "1", Text: "due", Category: "work", Reminder: &due},
		{ID: "2", Text: "done", Category: "work", Reminder: &due, Completed: true},
	})

	if got := e.DueReminders(baseTime); len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("DueReminders = %+v", got)
	}
	if !e.MarkReminderShown("1", baseTime) {
		t.Fatal("first mark should transition")
	}
	if e.MarkReminderShown("1", baseTime) {
		t.Error("second mark must not transition")
	}
	if e.MarkReminderShown("2", baseTime) {
		t.Error("completed task must not be marked")
	}
	if rec.CallCount() != 1 {
		t.Errorf("OnChange calls = %d, want 1", rec.CallCount())
	}
}

func TestReplaceRejectsInvalidCollection(t *testing.T) {
	e, rec := newTestEngine([]model.Task{{ID: "1", Text: "keep me", Category: "work"}})

	tests := []struct {
		name string
		in   []model.Task
	}{
		{name: "duplicate ids", in: []model.Task{{ID: "7", Text: "a"}, {ID: "7", Text: "b"}}},
		{name: "missing id", in: []model.Task{{Text: "a"}}},
		{name: "blank text", in: []model.Task{{ID: "7", Text: " "}}},
		{name: "unknown category", in: []model.Task{{ID: "7", Text: "a", Category: "errands"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Replace(tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("Replace error = %v, want ErrValidation", err)
			}
		})
	}

	if got := e.List(); len(got) != 1 || got[0].Text != "keep me" {
		t.Errorf("collection changed: %+v", got)
	}
	if rec.CallCount() != 0 {
		t.Errorf("OnChange calls = %d, want 0", rec.CallCount())
	}

	if err := e.Replace([]model.Task{{ID: "9", Text: "imported"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := e.List(); len(got) != 1 || got[0].Category != model.DefaultCategory {
		t.Errorf("after replace = %+v", got)
	}
}

func TestClosedEngineRejectsMutations(t *testing.T) {
	due := baseTime.Add(-time.Minute)
	e, rec := newTestEngine([]model.Task{{ID: "1", Text: "due", Category: "work", Reminder: &due}})
	e.Close()

	if _, err := e.Add(Input{Text: "Buy milk"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Add error = %v, want ErrClosed", err)
	}
	if _, err := e.ToggleCompleted("1"); !errors.Is(err, ErrClosed) {
		t.Errorf("ToggleCompleted error = %v, want ErrClosed", err)
	}
	text := "changed"
	if _, err := e.Update("1", Update{Text: &text}); !errors.Is(err, ErrClosed) {
		t.Errorf("Update error = %v, want ErrClosed", err)
	}
	if err := e.Remove("1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Remove error = %v, want ErrClosed", err)
	}
	if err := e.Replace(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Replace error = %v, want ErrClosed", err)
	}
	if e.MarkReminderShown("1", baseTime) {
		t.Error("closed engine must not mark reminders")
	}

	if got := e.List(); len(got) != 1 || got[0].Text != "due" {
		t.Errorf("reads after close = %+v", got)
	}
	if rec.CallCount() != 0 {
		t.Errorf("OnChange calls = %d, want 0", rec.CallCount())
	}
}
