package speech

import (
	"context"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
)

// NoopPlayer is a Player for platforms without speech synthesis.
type NoopPlayer struct{}

// Supported reports false.
func (NoopPlayer) Supported() bool { return false }

// Voices returns nil.
func (NoopPlayer) Voices() []domain.Voice { return nil }

// Speak returns a CapabilityUnsupportedError.
func (NoopPlayer) Speak(context.Context, string, *string) error {
	return &shared.CapabilityUnsupportedError{Capability: "speech synthesis"}
}

// Cancel does nothing.
func (NoopPlayer) Cancel() {}

// UnsupportedRecognizer is a Recognizer for platforms without speech capture.
type UnsupportedRecognizer struct{}

// Supported reports false.
func (UnsupportedRecognizer) Supported() bool { return false }

// Start returns a CapabilityUnsupportedError.
func (UnsupportedRecognizer) Start(Handler) error {
	return &shared.CapabilityUnsupportedError{Capability: "speech recognition"}
}

// Stop does nothing.
func (UnsupportedRecognizer) Stop() {}
