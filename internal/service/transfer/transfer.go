package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todohabit/internal/model"
	"todohabit/internal/service/habits"
	"todohabit/internal/service/tasks"
)

var ErrInvalidFormat = errors.New("invalid import file format")

// Document is the export/import file. Settings sections are optional on import.
type Document struct {
	Todos                   []model.Task                   `json:"todos"`
	Habits                  []model.Habit                  `json:"habits"`
	Settings                *model.Settings                `json:"settings,omitempty"`
	NotificationPreferences *model.NotificationPreferences `json:"notificationPreferences,omitempty"`
	PrivacySettings         *model.PrivacySettings         `json:"privacySettings,omitempty"`
	CalendarSync            *model.CalendarSync            `json:"calendarSync,omitempty"`
	ExportDate              time.Time                      `json:"exportDate"`
}

// Export snapshots the aggregate into an export document.
func Export(agg *model.Aggregate, now time.Time) Document {
	c := agg.Clone()
	return Document{
		Todos:                   c.Todos,
		Habits:                  c.Habits,
		Settings:                &c.Settings,
		NotificationPreferences: &c.NotificationPreferences,
		PrivacySettings:         &c.PrivacySettings,
		CalendarSync:            &c.CalendarSync,
		ExportDate:              now.UTC(),
	}
}

// Marshal renders the document with two-space indentation.
func Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// FileName is the suggested download name for an export made at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("todohabit_export_%s.json", now.UTC().Format(model.DateLayout))
}

// Parse validates an import file: todos and habits must both be present and
// be arrays, every record must pass its engine's checks and every settings
// section present must hold known values. Nothing is applied here, so a nil
// error means the whole file can be applied.
func Parse(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for _, key := range []string{"todos", "habits"} {
		raw, ok := top[key]
		if !ok {
			return Document{}, fmt.Errorf("%w: missing %s", ErrInvalidFormat, key)
		}
		if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '[' {
			return Document{}, fmt.Errorf("%w: %s is not an array", ErrInvalidFormat, key)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for i := range doc.Habits {
		if doc.Habits[i].CompletedDates == nil {
			doc.Habits[i].CompletedDates = []model.CalendarDate{}
		}
	}
	if err := doc.validate(); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return doc, nil
}

func (d Document) validate() error {
	if err := tasks.Validate(d.Todos); err != nil {
		return err
	}
	if err := habits.Validate(d.Habits); err != nil {
		return err
	}
	if d.Settings != nil && !d.Settings.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", d.Settings.Theme)
	}
	if d.PrivacySettings != nil && !model.ValidVisibility(d.PrivacySettings.ProfileVisibility) {
		return fmt.Errorf("unknown profile visibility %q", d.PrivacySettings.ProfileVisibility)
	}
	return nil
}
