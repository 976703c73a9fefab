package domain

import (
	"fmt"

	"golang.org/x/text/language"
)

// Layout controls how much verdict detail is rendered inline.
type Layout string

const (
	LayoutCompact  Layout = "compact"
	LayoutDetailed Layout = "detailed"
)

// NotificationPreferences gates outbound notifications.
type NotificationPreferences struct {
	Enabled    bool `json:"enabled"`
	NewReviews bool `json:"new_reviews"`
	Failures   bool `json:"failures"`
}

// Settings is the persisted userSettings record.
type Settings struct {
	DarkMode                bool                    `json:"dark_mode"`
	NotificationPreferences NotificationPreferences `json:"notification_preferences"`
	Language                string                  `json:"language"`
	Layout                  Layout                  `json:"layout"`
}

// DefaultSettings is used until the operator saves their own.
func DefaultSettings() Settings {
	return Settings{
		NotificationPreferences: NotificationPreferences{Enabled: true, NewReviews: true},
		Language:                "en",
		Layout:                  LayoutCompact,
	}
}

// Normalize validates the record and canonicalises the language tag.
func (s Settings) Normalize() (Settings, error) {
	if s.Language == "" {
		s.Language = "en"
	}
	tag, err := language.Parse(s.Language)
	if err != nil {
		return s, fmt.Errorf("invalid language %q: %w", s.Language, err)
	}
	s.Language = tag.String()

	switch s.Layout {
	case "":
		s.Layout = LayoutCompact
	case LayoutCompact, LayoutDetailed:
	default:
		return s, fmt.Errorf("invalid layout %q", s.Layout)
	}
	return s, nil
}

// Profile is the persisted userProfile record.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
