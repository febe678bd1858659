package model

import "time"

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

type Settings struct {
	Theme Theme `json:"theme"`
}

type NotificationPreferences struct {
	Email     bool `json:"email"`
	Push      bool `json:"push"`
	Reminders bool `json:"reminders"`
	Marketing bool `json:"marketing"`
}

type PrivacySettings struct {
	ProfileVisibility string `json:"profileVisibility"`
	ShareActivity     bool   `json:"shareActivity"`
	DataCollection    bool   `json:"dataCollection"`
}

// Profile visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityFriends = "friends"
	VisibilityPrivate = "private"
)

// ValidVisibility reports whether v is a known profile visibility.
func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityFriends || v == VisibilityPrivate
}

type CalendarSync struct {
	Enabled    bool       `json:"enabled"`
	LastSynced *time.Time `json:"lastSynced"`
	SyncTodos  bool       `json:"syncTodos"`
	SyncHabits bool       `json:"syncHabits"`
	Provider   *string    `json:"provider,omitempty"`
}

// Aggregate is the per-user document: tasks, habits and every settings section.
type Aggregate struct {
	UID                     string                  `json:"uid"`
	Email                   string                  `json:"email"`
	DisplayName             string                  `json:"displayName"`
	PhotoURL                string                  `json:"photoURL"`
	Todos                   []Task                  `json:"todos"`
	Habits                  []Habit                 `json:"habits"`
	Settings                Settings                `json:"settings"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences"`
	PrivacySettings         PrivacySettings         `json:"privacySettings"`
	CalendarSync            CalendarSync            `json:"calendarSync"`
	CreatedAt               time.Time               `json:"createdAt"`
	LastLogin               time.Time               `json:"lastLogin"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, Push: true, Reminders: true, Marketing: false}
}

func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{ProfileVisibility: VisibilityPublic, ShareActivity: true, DataCollection: true}
}

func DefaultCalendarSync() CalendarSync {
	return CalendarSync{Enabled: false, LastSynced: nil, SyncTodos: true, SyncHabits: true}
}

// NewAggregate builds the default document created for a first-time user.
func NewAggregate(ident Identity, now time.Time) *Aggregate {
	now = now.UTC()
	return &Aggregate{
		UID:                     ident.ID,
		Email:                   ident.Email,
		DisplayName:             ident.DisplayName,
		PhotoURL:                ident.PhotoURL,
		Todos:                   []Task{},
		Habits:                  []Habit{},
		Settings:                Settings{Theme: ThemeSystem},
		NotificationPreferences: DefaultNotificationPreferences(),
		PrivacySettings:         DefaultPrivacySettings(),
		CalendarSync:            DefaultCalendarSync(),
		CreatedAt:               now,
		LastLogin:               now,
	}
}

// Normalize repairs values an older or hand-edited document may leave empty.
func (a *Aggregate) Normalize() {
	if a.Todos == nil {
		a.Todos = []Task{}
	}
	if a.Habits == nil {
		a.Habits = []Habit{}
	}
	for i := range a.Habits {
		if a.Habits[i].CompletedDates == nil {
			a.Habits[i].CompletedDates = []CalendarDate{}
		}
	}
	if !a.Settings.Theme.Valid() {
		a.Settings.Theme = ThemeSystem
	}
}

// Clone returns a deep copy.
func (a *Aggregate) Clone() *Aggregate {
	c := *a
	c.Todos = CloneTasks(a.Todos)
	c.Habits = CloneHabits(a.Habits)
	if a.CalendarSync.LastSynced != nil {
		ls := *a.CalendarSync.LastSynced
		c.CalendarSync.LastSynced = &ls
	}
	if a.CalendarSync.Provider != nil {
		p := *a.CalendarSync.Provider
		c.CalendarSync.Provider = &p
	}
	return &c
}
