package model

import "time"

// DefaultCategory is assigned when a task is added without a category.
const DefaultCategory = "personal"

// Categories is the fixed set of task categories.
var Categories = []string{"work", "personal", "health", "shopping", "other"}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Task struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Completed     bool       `json:"completed"`
	Category      string     `json:"category"`
	Reminder      *time.Time `json:"reminder"`
	ReminderShown bool       `json:"reminderShown"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	if t.Reminder != nil {
		r := *t.Reminder
		t.Reminder = &r
	}
	return t
}

// CloneTasks deep-copies a task slice and never returns nil.
func CloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
