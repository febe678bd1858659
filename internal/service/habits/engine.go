package habits

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
	ErrValidation   = errors.New("invalid habit")
	ErrUnknownHabit = errors.New("unknown habit")
	ErrNotEligible  = errors.New("habit is not scheduled today")
	ErrClosed       = errors.New("habit list closed")
)

type Input struct {
	Name       string
	Frequency  model.Frequency
	CustomDays []string
	Reminder   *time.Time
}

// Update carries the fields to merge. CustomDays is applied when non-nil or
// when Frequency changes. SetReminder applies Reminder even when nil.
type Update struct {
	Name        *string
	Frequency   *model.Frequency
	CustomDays  []string
	SetReminder bool
	Reminder    *time.Time
}

// View is a habit plus its state for the current day.
type View struct {
	model.Habit
	CompletedToday bool `json:"completedToday"`
	EligibleToday  bool `json:"eligibleToday"`
}

// Engine owns the in-memory habit collection of one session and the
// achievements derived from it.
type Engine struct {
	mu            sync.Mutex
	habits        []model.Habit
	detector      *Detector
	ids           *idgen.Generator
	now           func() time.Time
	loc           *time.Location
	onChange      func([]model.Habit)
	onAchievement func([]model.Achievement)
	closed        bool
	logger        *zap.Logger
}

// NewEngine hydrates the engine. The initial collection is the achievement
// baseline, so nothing fires for milestones reached before this session.
func NewEngine(initial []model.Habit, now func() time.Time, loc *time.Location, logger *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{
		habits:   model.CloneHabits(initial),
		detector: NewDetector(),
		ids:      idgen.New(now),
		now:      now,
		loc:      loc,
		logger:   logger,
	}
	for _, h := range e.habits {
		e.ids.Seed(h.ID)
	}
	e.detector.Baseline(e.habits)
	return e
}

func (e *Engine) OnChange(fn func([]model.Habit)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// OnAchievement registers the callback fired with newly unlocked achievements.
func (e *Engine) OnAchievement(fn func([]model.Achievement)) {
	e.mu.Lock()
	e.onAchievement = fn
	e.mu.Unlock()
}

// Close rejects every later mutation with ErrClosed. Reads keep working.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *Engine) lockOpen() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// Today is the current calendar day in the engine's location.
func (e *Engine) Today() model.CalendarDate {
	return model.DateOf(e.now(), e.loc)
}

// commit must be called with e.mu held; it releases the lock before notifying.
func (e *Engine) commit() {
	snapshot := model.CloneHabits(e.habits)
	fired := e.detector.Observe(snapshot)
	onChange, onAchievement := e.onChange, e.onAchievement
	e.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	if len(fired) > 0 {
		for _, a := range fired {
			e.logger.Info("Achievement unlocked",
				zap.String("habit_id", a.Key.HabitID),
				zap.String("kind", a.Key.Kind.String()),
			)
		}
		if onAchievement != nil {
			onAchievement(fired)
		}
	}
}

func (e *Engine) indexOf(id string) int {
	for i := range e.habits {
		if e.habits[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeSchedule checks the frequency/customDays pairing and returns the
// days to store: a de-duplicated list for custom, nil otherwise.
func normalizeSchedule(f model.Frequency, days []string) ([]string, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrValidation, f)
	}
	if f != model.FrequencyCustom {
		return nil, nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(days))
	for _, d := range days {
		if !model.IsWeekdayName(d) {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrValidation, d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: custom frequency needs at least one day", ErrValidation)
	}
	return out, nil
}

func (e *Engine) Add(in Input) (model.Habit, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Habit{}, fmt.Errorf("%w: name is blank", ErrValidation)
	}
	if in.Frequency == "" {
		in.Frequency = model.FrequencyDaily
	}
	days, err := normalizeSchedule(in.Frequency, in.CustomDays)
	if err != nil {
		return model.Habit{}, err
	}

	if err := e.lockOpen(); err != nil {
		return model.Habit{}, err
	}
	h := model.Habit{
		ID:             e.ids.Next(),
		Name:           in.Name,
		Frequency:      in.Frequency,
		CustomDays:     days,
		CompletedDates: []model.CalendarDate{},
		Reminder:       copyTime(in.Reminder),
		CreatedAt:      e.now().UTC(),
	}
	e.habits = append(e.habits, h)
	e.logger.Debug("Habit added", zap.String("habit_id", h.ID), zap.String("frequency", string(h.Frequency)))
	e.commit()
	return h.Clone(), nil
}

// Update edits name, schedule and reminder. Streak and completions are untouched.
func (e *Engine) Update(id string, u Update) (model.Habit, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return model.Habit{}, fmt.Errorf("%w: name is blank", ErrValidation)
	}

	if err := e.lockOpen(); err != nil {
		return model.Habit{}, err
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return model.Habit{}, fmt.Errorf("%w: %s", ErrUnknownHabit, id)
	}
	h := e.habits[i].Clone()

	if u.Name != nil {
		h.Name = *u.Name
	}
	if u.Frequency != nil || u.CustomDays != nil {
		freq := h.Frequency
		if u.Frequency != nil {
			freq = *u.Frequency
		}
		days := h.CustomDays
		if u.CustomDays != nil {
			days = u.CustomDays
		}
		norm, err := normalizeSchedule(freq, days)
		if err != nil {
			e.mu.Unlock()
			return model.Habit{}, err
		}
		h.Frequency, h.CustomDays = freq, norm
	}
	if u.SetReminder && !sameTime(h.Reminder, u.Reminder) {
		h.Reminder = copyTime(u.Reminder)
		h.ReminderShown = false
	}

	e.habits[i] = h
	out := h.Clone()
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
		return fmt.Errorf("%w: %s", ErrUnknownHabit, id)
	}
	e.habits = append(e.habits[:i], e.habits[i+1:]...)
	e.logger.Debug("Habit removed", zap.String("habit_id", id))
	e.commit()
	return nil
}

// ToggleCompletion flips today's completion. Habits not scheduled today
// return ErrNotEligible and are left unchanged.
func (e *Engine) ToggleCompletion(id string) (model.Habit, error) {
	today := e.Today()

	if err := e.lockOpen(); err != nil {
		return model.Habit{}, err
	}
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return model.Habit{}, fmt.Errorf("%w: %s", ErrUnknownHabit, id)
	}
	if !IsEligibleToday(e.habits[i], today) {
		e.mu.Unlock()
		return model.Habit{}, fmt.Errorf("%w: %s on %s", ErrNotEligible, id, today.WeekdayName())
	}
	e.habits[i] = ToggleCompletion(e.habits[i], today)
	out := e.habits[i].Clone()
	e.logger.Debug("Habit completion toggled",
		zap.String("habit_id", id),
		zap.String("date", string(today)),
		zap.Bool("completed", out.HasCompleted(today)),
		zap.Int("streak", out.Streak),
	)
	e.commit()
	return out, nil
}

func (e *Engine) List() []model.Habit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneHabits(e.habits)
}

func (e *Engine) Get(id string) (model.Habit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(id); i >= 0 {
		return e.habits[i].Clone(), true
	}
	return model.Habit{}, false
}

// Views lists habits with today's completion and eligibility.
func (e *Engine) Views() []View {
	today := e.Today()
	habits := e.List()
	out := make([]View, len(habits))
	for i, h := range habits {
		out[i] = View{
			Habit:          h,
			CompletedToday: h.HasCompleted(today),
			EligibleToday:  IsEligibleToday(h, today),
		}
	}
	return out
}

func (e *Engine) DueReminders(now time.Time) []model.Habit {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.Habit
	for _, h := range e.habits {
		if reminderDue(h, now) {
			out = append(out, h.Clone())
		}
	}
	return out
}

// MarkReminderShown flips reminderShown if the reminder is still due.
func (e *Engine) MarkReminderShown(id string, now time.Time) bool {
	if e.lockOpen() != nil {
		return false
	}
	i := e.indexOf(id)
	if i < 0 || !reminderDue(e.habits[i], now) {
		e.mu.Unlock()
		return false
	}
	e.habits[i].ReminderShown = true
	e.commit()
	return true
}

// Validate checks an imported collection: unique ids, non-blank names, a
// known frequency with customDays present only for custom, and well-formed
// completion dates.
func Validate(list []model.Habit) error {
	seen := make(map[string]bool, len(list))
	for i, h := range list {
		if h.ID == "" {
			return fmt.Errorf("%w: habit %d has no id", ErrValidation, i)
		}
		if seen[h.ID] {
			return fmt.Errorf("%w: duplicate id %s", ErrValidation, h.ID)
		}
		seen[h.ID] = true
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("%w: habit %s has blank name", ErrValidation, h.ID)
		}
		if h.Frequency != model.FrequencyCustom && len(h.CustomDays) > 0 {
			return fmt.Errorf("%w: habit %s has customDays but frequency %q", ErrValidation, h.ID, h.Frequency)
		}
		if _, err := normalizeSchedule(h.Frequency, h.CustomDays); err != nil {
			return fmt.Errorf("habit %s: %w", h.ID, err)
		}
		if h.Streak < 0 {
			return fmt.Errorf("%w: habit %s has negative streak", ErrValidation, h.ID)
		}
		for _, d := range h.CompletedDates {
			if _, err := model.ParseDate(string(d)); err != nil {
				return fmt.Errorf("%w: habit %s has bad date %q", ErrValidation, h.ID, d)
			}
		}
	}
	return nil
}

// Replace swaps the whole collection. Achievements are compared against the
// previous values, so restored streaks that skip a milestone fire nothing.
// Invalid input leaves the collection untouched.
func (e *Engine) Replace(list []model.Habit) error {
	if err := Validate(list); err != nil {
		return err
	}
	if err := e.lockOpen(); err != nil {
		return err
	}
	e.habits = model.CloneHabits(list)
	for i := range e.habits {
		h := &e.habits[i]
		h.CustomDays, _ = normalizeSchedule(h.Frequency, h.CustomDays)
		if h.CompletedDates == nil {
			h.CompletedDates = []model.CalendarDate{}
		}
		e.ids.Seed(h.ID)
	}
	e.commit()
	return nil
}

func (e *Engine) Achievements() []model.Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detector.Active()
}

func (e *Engine) DismissAchievement(key model.AchievementKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detector.Dismiss(key)
}

func reminderDue(h model.Habit, now time.Time) bool {
	return h.Reminder != nil && !h.ReminderShown && !h.Reminder.After(now)
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
