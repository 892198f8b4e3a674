// Package settings owns the learner's persisted preferences.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/store"
)

// Setting keys accepted by Update. They match the persisted JSON field names.
const (
	KeyAIVoiceEnabled = "aiVoiceEnabled"
	KeySelectedVoice  = "selectedVoiceURI"
	KeyShowFeedback   = "showFeedback"
	KeyDarkMode       = "darkMode"
)

// Preferred default voice, chosen when voices become available and none is selected.
const (
	DefaultVoiceName     = "Google UK English Female"
	DefaultVoiceLanguage = "en-GB"
)

// Store holds UserSettings in memory and writes every change through.
type Store struct {
	mu       sync.Mutex
	repo     store.Repository
	settings domain.UserSettings
	logger   *slog.Logger
}

// NewStore loads persisted settings over the defaults. Fields missing from
// the persisted document keep their default values.
func NewStore(ctx context.Context, repo store.Repository, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loaded := domain.DefaultUserSettings()
	ok, err := store.LoadJSON(ctx, repo, store.KeyUserSettings, &loaded)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		loaded = domain.DefaultUserSettings()
	}

	return &Store{repo: repo, settings: loaded, logger: logger}, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() domain.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// Update merges one key into the settings and persists the result.
// An unknown key or a value of the wrong type is a UsageError.
func (s *Store) Update(ctx context.Context, key string, value any) (domain.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	if err := apply(&next, key, value); err != nil {
		return s.settings.Clone(), err
	}
	s.settings = next

	s.logger.Debug("setting updated", "key", key)
	if err := store.SaveJSON(ctx, s.repo, store.KeyUserSettings, next); err != nil {
		return next.Clone(), fmt.Errorf("persist settings: %w", err)
	}
	return next.Clone(), nil
}

func apply(s *domain.UserSettings, key string, value any) error {
	const op = "update setting"

	switch key {
	case KeyAIVoiceEnabled, KeyShowFeedback, KeyDarkMode:
		b, ok := value.(bool)
		if !ok {
			return shared.Usagef(op, "%s expects a boolean, got %T", key, value)
		}
		switch key {
		case KeyAIVoiceEnabled:
			s.AIVoiceEnabled = b
		case KeyShowFeedback:
			s.ShowFeedback = b
		default:
			s.DarkMode = b
		}
	case KeySelectedVoice:
		switch v := value.(type) {
		case nil:
			s.SelectedVoiceID = nil
		case string:
			s.SelectedVoiceID = voicePtr(v)
		case *string:
			if v == nil {
				s.SelectedVoiceID = nil
			} else {
				s.SelectedVoiceID = voicePtr(*v)
			}
		default:
			return shared.Usagef(op, "%s expects a string or null, got %T", key, value)
		}
	default:
		return shared.Usagef(op, "unknown setting %q", key)
	}
	return nil
}

// voicePtr treats an empty identifier as "platform default".
func voicePtr(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

// EnsureDefaultVoice selects the preferred default voice when none is selected
// and it is among voices. It reports whether the settings changed.
func (s *Store) EnsureDefaultVoice(ctx context.Context, voices []domain.Voice) (domain.UserSettings, bool, error) {
	current := s.Get()
	if current.SelectedVoiceID != nil {
		return current, false, nil
	}
	v, ok := PreferredVoice(voices)
	if !ok {
		return current, false, nil
	}
	updated, err := s.Update(ctx, KeySelectedVoice, v.ID)
	if err != nil {
		return updated, false, err
	}
	s.logger.Info("default voice selected", "voice_id", v.ID, "voice_name", v.Name)
	return updated, true, nil
}

// PreferredVoice finds the preferred default voice in voices.
func PreferredVoice(voices []domain.Voice) (domain.Voice, bool) {
	for _, v := range voices {
		if v.Name == DefaultVoiceName && v.Language == DefaultVoiceLanguage {
			return v, true
		}
	}
	return domain.Voice{}, false
}

// EnglishVoices filters voices to those with an English language tag.
func EnglishVoices(voices []domain.Voice) []domain.Voice {
	out := make([]domain.Voice, 0, len(voices))
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Language), "en") {
			out = append(out, v)
		}
	}
	return out
}
