package domain

// UserSettings holds learner preferences.
type UserSettings struct {
	AIVoiceEnabled bool `json:"aiVoiceEnabled"`
	// SelectedVoiceID is nil when the platform default voice should be used.
	SelectedVoiceID *string `json:"selectedVoiceURI"`
	ShowFeedback    bool    `json:"showFeedback"`
	DarkMode        bool    `json:"darkMode"`
}

// DefaultUserSettings returns the settings used when none are persisted.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		AIVoiceEnabled: true,
		ShowFeedback:   true,
		DarkMode:       true,
	}
}

// Clone returns a copy that does not alias the selected voice pointer.
func (s UserSettings) Clone() UserSettings {
	if s.SelectedVoiceID != nil {
		v := *s.SelectedVoiceID
		s.SelectedVoiceID = &v
	}
	return s
}

// Voice is a speech synthesis voice offered by the platform.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"lang"`
	Default  bool   `json:"default,omitempty"`
}
