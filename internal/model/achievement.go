package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type AchievementKind int

const (
	AchievementFirst AchievementKind = iota + 1
	AchievementWeek
	AchievementMonth
)

func (k AchievementKind) String() string {
	switch k {
	case AchievementFirst:
		return "first"
	case AchievementWeek:
		return "week"
	case AchievementMonth:
		return "month"
	}
	return "unknown"
}

// ParseAchievementKind is the inverse of String.
func ParseAchievementKind(s string) (AchievementKind, error) {
	switch strings.ToLower(s) {
	case "first":
		return AchievementFirst, nil
	case "week":
		return AchievementWeek, nil
	case "month":
		return AchievementMonth, nil
	}
	return 0, fmt.Errorf("unknown achievement kind %q", s)
}

// AchievementKey identifies one milestone of one habit. It is comparable and used as a map key.
type AchievementKey struct {
	Kind    AchievementKind
	HabitID string
}

func (k AchievementKey) String() string {
	return k.Kind.String() + "-" + k.HabitID
}

// Achievement is an ephemeral milestone event. It is never persisted.
type Achievement struct {
	Key         AchievementKey
	Title       string
	Description string
}

func (a Achievement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Kind        string `json:"kind"`
		HabitID     string `json:"habitId"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}{
		ID:          a.Key.String(),
		Kind:        a.Key.Kind.String(),
		HabitID:     a.Key.HabitID,
		Title:       a.Title,
		Description: a.Description,
	})
}
