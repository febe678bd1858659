package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"todohabit/internal/model"
)

// DefaultCalendarProvider is used by ConnectCalendar when none is given.
const DefaultCalendarProvider = "google"

// mutate applies fn to the held aggregate and queues the returned value for
// field. Nothing is queued when fn fails.
func (s *Session) mutate(field model.Field, fn func(agg *model.Aggregate) (any, error)) error {
	s.mu.Lock()
	if s.agg == nil || s.loop == nil {
		err := s.inactiveErr()
		s.mu.Unlock()
		return err
	}
	next := s.agg.Clone()
	value, err := fn(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.agg = next
	loop := s.loop
	s.mu.Unlock()

	loop.Submit(field, value)
	return nil
}

func (s *Session) Settings() (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.agg == nil {
		return model.Settings{}, ErrUnauthenticated
	}
	return s.agg.Settings, nil
}

// UpdateTheme always stores the theme locally. The remote write is skipped
// once the store has denied permission for this session.
func (s *Session) UpdateTheme(ctx context.Context, theme model.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("%w: unknown theme %q", ErrValidation, theme)
	}
	if err := s.deps.Store.WriteLocalTheme(ctx, theme); err != nil {
		s.deps.Logger.Warn("Failed to store local theme", zap.Error(err))
	}

	s.mu.Lock()
	if s.agg == nil || s.loop == nil {
		err := s.inactiveErr()
		s.mu.Unlock()
		return err
	}
	s.agg.Settings.Theme = theme
	settings := s.agg.Settings
	loop, denied := s.loop, s.permissionDenied
	s.mu.Unlock()

	if denied {
		s.deps.Logger.Info("Theme stored locally only, remote store denied permission")
		return nil
	}
	loop.Submit(model.FieldSettings, settings)
	return nil
}

func (s *Session) UpdateNotificationPreferences(_ context.Context, prefs model.NotificationPreferences) error {
	return s.mutate(model.FieldNotificationPreferences, func(agg *model.Aggregate) (any, error) {
		agg.NotificationPreferences = prefs
		return prefs, nil
	})
}

func (s *Session) UpdatePrivacySettings(_ context.Context, privacy model.PrivacySettings) error {
	if !model.ValidVisibility(privacy.ProfileVisibility) {
		return fmt.Errorf("%w: unknown profile visibility %q", ErrValidation, privacy.ProfileVisibility)
	}
	return s.mutate(model.FieldPrivacySettings, func(agg *model.Aggregate) (any, error) {
		agg.PrivacySettings = privacy
		return privacy, nil
	})
}

// CalendarSyncUpdate carries the toggles a caller may change. nil keeps the
// current value.
type CalendarSyncUpdate struct {
	Enabled    *bool
	SyncTodos  *bool
	SyncHabits *bool
}

// UpdateCalendarSync applies toggles. Turning sync on stamps lastSynced.
func (s *Session) UpdateCalendarSync(_ context.Context, u CalendarSyncUpdate) (model.CalendarSync, error) {
	var out model.CalendarSync
	err := s.mutate(model.FieldCalendarSync, func(agg *model.Aggregate) (any, error) {
		cs := agg.CalendarSync
		if u.Enabled != nil {
			if *u.Enabled && !cs.Enabled {
				now := s.deps.Now().UTC()
				cs.LastSynced = &now
			}
			cs.Enabled = *u.Enabled
		}
		if u.SyncTodos != nil {
			cs.SyncTodos = *u.SyncTodos
		}
		if u.SyncHabits != nil {
			cs.SyncHabits = *u.SyncHabits
		}
		agg.CalendarSync = cs
		out = cs
		return cs, nil
	})
	return out, err
}

func (s *Session) ConnectCalendar(_ context.Context, provider string) (model.CalendarSync, error) {
	if provider == "" {
		provider = DefaultCalendarProvider
	}
	var out model.CalendarSync
	err := s.mutate(model.FieldCalendarSync, func(agg *model.Aggregate) (any, error) {
		now := s.deps.Now().UTC()
		p := provider
		cs := agg.CalendarSync
		cs.Enabled, cs.LastSynced, cs.Provider = true, &now, &p
		agg.CalendarSync = cs
		out = cs
		return cs, nil
	})
	return out, err
}

func (s *Session) DisconnectCalendar(_ context.Context) (model.CalendarSync, error) {
	var out model.CalendarSync
	err := s.mutate(model.FieldCalendarSync, func(agg *model.Aggregate) (any, error) {
		cs := agg.CalendarSync
		cs.Enabled, cs.LastSynced, cs.Provider = false, nil, nil
		agg.CalendarSync = cs
		out = cs
		return cs, nil
	})
	return out, err
}

// UpdateProfile changes the display name.
func (s *Session) UpdateProfile(_ context.Context, displayName string) error {
	return s.mutate(model.FieldDisplayName, func(agg *model.Aggregate) (any, error) {
		agg.DisplayName = displayName
		return displayName, nil
	})
}
