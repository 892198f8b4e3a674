package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"
)

// Placeholder results for responses that parse but do not match the schema.
const (
	UnexpectedFeedbackMessage = "Received feedback in an unexpected format."
	UnexpectedHintsMessage    = "Sorry, couldn't fetch suggestions in the expected format."
)

const feedbackPrompt = `Context: The user is practicing English in a scenario: %q.
User's message: %q

Analyze the user's message for English language proficiency. Give brief, constructive feedback on 1-2 key areas such as grammar, vocabulary choice, naturalness, or pronunciation (when the text suggests it, e.g. "you could say X more clearly like Y").
If the message is good, offer encouragement.
Respond with a JSON object {"feedback": [...]} where each item has "type" (one of "grammar", "vocabulary", "fluency", "pronunciation", "general"), "message" (the feedback) and, when relevant, "suggestion".
Example: {"feedback": [{"type": "grammar", "message": "Minor grammar mix-up: 'I go yesterday' should be 'I went yesterday'.", "suggestion": "I went yesterday."}]}
Example: {"feedback": [{"type": "general", "message": "Great job! Your sentence is clear and natural."}]}
Respond with the JSON object only.`

const hintsPrompt = `The user is stuck and needs help. Suggest 2-3 simple and relevant English phrases or questions they could say next to continue the conversation or ask for clarification.
Respond with a JSON object {"hints": [...]} holding only strings. Example: {"hints": ["What do you mean by that?", "Can you tell me more?", "I'm not sure what to say next."]}`

// Feedback asks the model to assess userText.
func (c *OpenAIClient) Feedback(ctx context.Context, userText, scenarioDescription string) ([]domain.FeedbackItem, error) {
	const op = "feedback"
	if err := c.credentialError(op); err != nil {
		return nil, err
	}
	raw, err := c.completeJSON(ctx, fmt.Sprintf(feedbackPrompt, scenarioDescription, userText))
	if err != nil {
		return nil, shared.NewServiceError(op, err)
	}
	return ParseFeedback(raw), nil
}

// Hints asks the model for phrases the learner could say next.
func (c *OpenAIClient) Hints(ctx context.Context, scenarioDescription string, lastUserText, lastAIText *string) ([]string, error) {
	const op = "hints"
	if err := c.credentialError(op); err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The user is practicing English in a conversation scenario: %q.\n", scenarioDescription)
	if lastUserText != nil && *lastUserText != "" {
		fmt.Fprintf(&b, "Their last message was: %q\n", *lastUserText)
	}
	if lastAIText != nil && *lastAIText != "" {
		fmt.Fprintf(&b, "The AI's last response was: %q\n", *lastAIText)
	}
	b.WriteString(hintsPrompt)

	raw, err := c.completeJSON(ctx, b.String())
	if err != nil {
		return nil, shared.NewServiceError(op, err)
	}
	return ParseHints(raw), nil
}

func (c *OpenAIClient) completeJSON(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
}

type rawFeedbackItem struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// ParseFeedback decodes a model response holding either {"feedback": [...]}
// or a bare array. Items without a type or message are dropped. Anything else
// yields a single general item saying the format was unexpected.
func ParseFeedback(raw string) []domain.FeedbackItem {
	unexpected := []domain.FeedbackItem{{Category: domain.FeedbackGeneral, Message: UnexpectedFeedbackMessage}}

	var items []rawFeedbackItem
	if !decodeList(raw, "feedback", &items) {
		return unexpected
	}
	out := make([]domain.FeedbackItem, 0, len(items))
	for _, it := range items {
		if it.Type == "" || it.Message == "" {
			continue
		}
		out = append(out, domain.FeedbackItem{
			Category:   domain.NormalizeFeedbackCategory(strings.ToLower(it.Type)),
			Message:    it.Message,
			Suggestion: it.Suggestion,
		})
	}
	return out
}

// ParseHints decodes a model response holding either {"hints": [...]} or a
// bare array of strings.
func ParseHints(raw string) []string {
	var hints []string
	if !decodeList(raw, "hints", &hints) {
		return []string{UnexpectedHintsMessage}
	}
	return hints
}

// decodeList accepts a bare JSON array or an object carrying the array under key.
func decodeList(raw, key string, dst any) bool {
	body := stripCodeFence(raw)
	if strings.HasPrefix(body, "[") {
		return sonic.UnmarshalString(body, dst) == nil
	}
	node, err := sonic.GetFromString(body, key)
	if err != nil {
		return false
	}
	list, err := node.Raw()
	if err != nil || !strings.HasPrefix(strings.TrimSpace(list), "[") {
		return false
	}
	return sonic.UnmarshalString(list, dst) == nil
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
