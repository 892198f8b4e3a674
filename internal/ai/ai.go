// Package ai defines the AI collaborators of a practice conversation and an
// implementation over any OpenAI-compatible chat completions API.
package ai

import (
	"context"

	"github.com/ashureev/belai/internal/domain"
)

// Session is an opaque handle bound to one system instruction.
type Session interface {
	ID() string
}

// Reply is the AI's answer to one user turn.
type Reply struct {
	Text      string
	Citations []domain.Citation
}

// ConversationClient holds stateful conversations with an AI persona.
// Failures are reported as shared.ServiceError, or shared.ConfigurationError
// when no credential is configured.
type ConversationClient interface {
	OpenSession(ctx context.Context, systemInstruction string) (Session, error)
	// Exchange sends userText and returns the AI's reply. An empty userText
	// asks the AI to open the conversation.
	Exchange(ctx context.Context, s Session, userText string) (Reply, error)
}

// Coach produces linguistic feedback and hint phrases.
type Coach interface {
	Feedback(ctx context.Context, userText, scenarioDescription string) ([]domain.FeedbackItem, error)
	Hints(ctx context.Context, scenarioDescription string, lastUserText, lastAIText *string) ([]string, error)
}
