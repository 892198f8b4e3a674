package speech

import (
	"context"
	"sync"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/google/uuid"
)

// Broadcaster delivers a message to every connected client.
type Broadcaster interface {
	Broadcast(v any)
}

// PlaybackCommand is sent to clients that perform speech synthesis.
type PlaybackCommand struct {
	Type        string  `json:"type"`
	UtteranceID string  `json:"utterance_id,omitempty"`
	Text        string  `json:"text,omitempty"`
	VoiceID     *string `json:"voice_id,omitempty"`
}

// Playback command types.
const (
	CommandSpeak  = "speak"
	CommandCancel = "speech_cancel"
)

// RemotePlayer delegates synthesis to a connected browser. The browser
// reports its capability and voice list through SetCapabilities.
type RemotePlayer struct {
	out Broadcaster

	mu        sync.RWMutex
	supported bool
	voices    []domain.Voice
}

// NewRemotePlayer creates a player that publishes commands to out.
func NewRemotePlayer(out Broadcaster) *RemotePlayer {
	return &RemotePlayer{out: out}
}

// SetCapabilities records what the client can do.
func (p *RemotePlayer) SetCapabilities(supported bool, voices []domain.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported = supported
	p.voices = append([]domain.Voice(nil), voices...)
}

// Supported reports whether a client announced speech synthesis.
func (p *RemotePlayer) Supported() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.supported
}

// Voices returns the client's voices.
func (p *RemotePlayer) Voices() []domain.Voice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Voice(nil), p.voices...)
}

// Speak asks clients to narrate text.
func (p *RemotePlayer) Speak(_ context.Context, text string, voiceID *string) error {
	if !p.Supported() {
		return &shared.CapabilityUnsupportedError{Capability: "speech synthesis"}
	}
	if text == "" {
		return nil
	}
	p.out.Broadcast(PlaybackCommand{
		Type:        CommandSpeak,
		UtteranceID: uuid.NewString(),
		Text:        text,
		VoiceID:     voiceID,
	})
	return nil
}

// Cancel asks clients to stop narrating.
func (p *RemotePlayer) Cancel() {
	p.out.Broadcast(PlaybackCommand{Type: CommandCancel})
}
