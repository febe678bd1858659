package model

// Field names a top-level key of the persisted aggregate document.
type Field string

const (
	FieldTodos                   Field = "todos"
	FieldHabits                  Field = "habits"
	FieldSettings                Field = "settings"
	FieldNotificationPreferences Field = "notificationPreferences"
	FieldPrivacySettings         Field = "privacySettings"
	FieldCalendarSync            Field = "calendarSync"
	FieldEmail                   Field = "email"
	FieldDisplayName             Field = "displayName"
	FieldPhotoURL                Field = "photoURL"
	FieldLastLogin               Field = "lastLogin"
)

// Patch is a partial aggregate: each entry replaces one top-level field.
type Patch map[Field]any
