package store

import "todohabit/internal/model"

// ThemeKey is the device-wide fallback key for the theme. Its value is the raw theme string.
const ThemeKey = "theme"

// FallbackKey maps an aggregate field to its local fallback key.
func FallbackKey(field model.Field, uid string) string {
	switch field {
	case model.FieldSettings:
		return ThemeKey
	case model.FieldNotificationPreferences:
		return "notifications_" + uid
	case model.FieldPrivacySettings:
		return "privacy_" + uid
	case model.FieldCalendarSync:
		return "calendar_sync_" + uid
	}
	return string(field) + "_" + uid
}
