// Package speech defines the speech playback and capture capabilities used
// by the conversation orchestrator, with platform-backed and no-op variants.
package speech

import (
	"context"
	"strings"

	"github.com/ashureev/belai/internal/domain"
)

// Player speaks text aloud. Speak starts playback and returns without waiting
// for it to finish; a new Speak replaces any utterance in progress.
type Player interface {
	Supported() bool
	Voices() []domain.Voice
	Speak(ctx context.Context, text string, voiceID *string) error
	Cancel()
}

// Transcript is one recognized speech fragment.
type Transcript struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Recognition error codes reported by speech capture.
const (
	CodeNoSpeech             = "no-speech"
	CodeAborted              = "aborted"
	CodeAudioCapture         = "audio-capture"
	CodeNetwork              = "network"
	CodeNotAllowed           = "not-allowed"
	CodeServiceNotAllowed    = "service-not-allowed"
	CodeBadGrammar           = "bad-grammar"
	CodeLanguageNotSupported = "language-not-supported"
)

// RecognitionError is a speech capture failure.
type RecognitionError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return "speech recognition: " + e.Code
	}
	return "speech recognition: " + e.Code + ": " + e.Message
}

// KnownRecognitionCode reports whether code belongs to the error taxonomy.
func KnownRecognitionCode(code string) bool {
	switch code {
	case CodeNoSpeech, CodeAborted, CodeAudioCapture, CodeNetwork, CodeNotAllowed,
		CodeServiceNotAllowed, CodeBadGrammar, CodeLanguageNotSupported:
		return true
	}
	return false
}

// Handler receives recognition events. Nil callbacks are skipped.
type Handler struct {
	OnResult func(Transcript)
	OnError  func(*RecognitionError)
	OnEnd    func()
}

// Recognizer produces transcript fragments from microphone audio.
type Recognizer interface {
	Supported() bool
	Start(h Handler) error
	Stop()
}

// ResolveVoice picks the voice to use for id. A missing or unknown id falls
// back to the platform's default English voice, then to any English voice.
func ResolveVoice(voices []domain.Voice, id *string) (domain.Voice, bool) {
	if id != nil {
		for _, v := range voices {
			if v.ID == *id {
				return v, true
			}
		}
	}
	var firstEnglish *domain.Voice
	for i := range voices {
		v := &voices[i]
		if !strings.HasPrefix(strings.ToLower(v.Language), "en") {
			continue
		}
		if v.Default {
			return *v, true
		}
		if firstEnglish == nil {
			firstEnglish = v
		}
	}
	if firstEnglish != nil {
		return *firstEnglish, true
	}
	return domain.Voice{}, false
}
