package tasks

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"todohabit/internal/model"
	"todohabit/internal/service/idgen"
)

var (
	ErrValidation  = errors.New("invalid task")
	ErrUnknownTask = errors.New("unknown task")
	ErrClosed      = errors.New("task list closed")
)

// Filter values besides a category id.
const (
	FilterAll       = "all"
	FilterActive    = "active"
	FilterCompleted = "completed"
)

type Input struct {
	Text     string
	Category string
	Reminder *time.Time
}

// Update carries the fields to merge. Nil pointers leave a field unchanged;
// SetReminder applies Reminder even when it is nil (clearing it).
type Update struct {
	Text        *string
	Category    *string
	Completed   *bool
	SetReminder bool
	Reminder    *time.Time
}

// Engine owns the in-memory task collection of one session.
type Engine struct {
	mu       sync.Mutex
	tasks    []model.Task
	ids      *idgen.Generator
	now      func() time.Time
	onChange func([]model.Task)
	closed   bool
	logger   *zap.Logger
}

func NewEngine(initial []model.Task, now func() time.Time, logger *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		tasks:  model.CloneTasks(initial),
		ids:    idgen.New(now),
		now:    now,
		logger: logger,
	}
	for _, t := range e.tasks {
		e.ids.Seed(t.ID)
	}
	return e
}

// OnChange registers the callback fired with a snapshot after every mutation.
func (e *Engine) OnChange(fn func([]model.Task)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Close rejects every later mutation with ErrClosed. Reads keep working.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// lockOpen takes e.mu for a mutation. On a closed engine it returns ErrClosed
// with the lock released.
func (e *Engine) lockOpen() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// commit must be called with e.mu held; it releases the lock before notifying.
func (e *Engine) commit() {
	snapshot := model.CloneTasks(e.tasks)
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (e *Engine) indexOf(id string) int {
	for i := range e.tasks {
		if e.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func validCategory(c string) (string, error) {
	if c == "" {
		return model.DefaultCategory, nil
	}
	if !model.IsCategory(c) {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, c)
	}
	return c, nil
}

// Add appends a new task. Blank text is rejected without touching the collection.
func (e *Engine) Add(in Input) (model.Task, error) {
	if strings.TrimSpace(in.Text) == "" {
		return model.Task{}, fmt.Errorf("%w: text is blank", ErrValidation)
	}
	category, err := validCategory(in.Category)
	if err != nil {
		return model.Task{}, err
	}

	if err := e.lockOpen(); err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:        e.ids.Next(),
		Text:      in.Text,
		Category:  category,
		Reminder:  copyTime(in.Reminder),
		CreatedAt: e.now().UTC(),
	}
	e.tasks = append(e.tasks, t)
	e.logger.Debug("Task added", zap.String("task_id", t.ID), zap.String("category", category))
	e.commit()
	return t.Clone(), nil
}

// Update merges u into the task. A changed reminder resets reminderShown.
func (e *Engine) Update(id string, u Update) (model.Task, error) {
	if u.Text != nil && strings.TrimSpace(*u.Text) == "" {
		return model.Task{}, fmt.Errorf("%w: text is blank", ErrValidation)
	}
	var category string
	if u.Category != nil {
		var err error
		if category, err = validCategory(*u.Category); err != nil {
			return model.Task{}, err
		}
	}

	if err := e.lockOpen(); err != nil {
		return model.Task{}, err
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return model.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	t := &e.tasks[i]
	if u.Text != nil {
		t.Text = *u.Text
	}
	if u.Category != nil {
		t.Category = category
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.SetReminder && !sameTime(t.Reminder, u.Reminder) {
		t.Reminder = copyTime(u.Reminder)
		t.ReminderShown = false
	}
	out := t.Clone()
	e.commit()
	return out, nil
}

func (e *Engine) ToggleCompleted(id string) (model.Task, error) {
	if err := e.lockOpen(); err != nil {
		return model.Task{}, err
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return model.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	e.tasks[i].Completed = !e.tasks[i].Completed
	out := e.tasks[i].Clone()
	e.commit()
	return out, nil
}

func (e *Engine) Remove(id string) error {
	if err := e.lockOpen(); err != nil {
		return err
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
	e.logger.Debug("Task removed", zap.String("task_id", id))
	e.commit()
	return nil
}

// Filter returns a fresh view: all, active, completed, or every task in a category.
func (e *Engine) Filter(f string) []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []model.Task{}
	for _, t := range e.tasks {
		var keep bool
		switch f {
		case "", FilterAll:
			keep = true
		case FilterActive:
			keep = !t.Completed
		case FilterCompleted:
			keep = t.Completed
		default:
			keep = t.Category == f
		}
		if keep {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (e *Engine) List() []model.Task {
	return e.Filter(FilterAll)
}

func (e *Engine) Get(id string) (model.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(id); i >= 0 {
		return e.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// DueReminders lists tasks whose unfired reminder is at or before now and
// that are not completed.
func (e *Engine) DueReminders(now time.Time) []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.Task
	for _, t := range e.tasks {
		if reminderDue(t, now) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// MarkReminderShown flips reminderShown if the reminder is still due.
// It reports whether this call made the transition.
func (e *Engine) MarkReminderShown(id string, now time.Time) bool {
	if e.lockOpen() != nil {
		return false
	}
	i := e.indexOf(id)
	if i < 0 || !reminderDue(e.tasks[i], now) {
		e.mu.Unlock()
		return false
	}
	e.tasks[i].ReminderShown = true
	e.commit()
	return true
}

// Validate checks an imported collection: every task needs a unique id,
// non-blank text and a known or empty category.
func Validate(list []model.Task) error {
	seen := make(map[string]bool, len(list))
	for i, t := range list {
		if t.ID == "" {
			return fmt.Errorf("%w: task %d has no id", ErrValidation, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate id %s", ErrValidation, t.ID)
		}
		seen[t.ID] = true
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("%w: task %s has blank text", ErrValidation, t.ID)
		}
		if _, err := validCategory(t.Category); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}

// Replace swaps the whole collection, as after an import. Invalid input leaves
// the collection untouched.
func (e *Engine) Replace(list []model.Task) error {
	if err := Validate(list); err != nil {
		return err
	}
	if err := e.lockOpen(); err != nil {
		return err
	}
	e.tasks = model.CloneTasks(list)
	for i := range e.tasks {
		if e.tasks[i].Category == "" {
			e.tasks[i].Category = model.DefaultCategory
		}
		e.ids.Seed(e.tasks[i].ID)
	}
	e.commit()
	return nil
}

func reminderDue(t model.Task, now time.Time) bool {
	return t.Reminder != nil && !t.ReminderShown && !t.Completed && !t.Reminder.After(now)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := t.UTC()
	return &c
}
