package domain

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

// Message senders.
const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Citation is a source reference attached to a grounded AI reply.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// NewCitation builds a citation, falling back to the URI when the title is empty.
func NewCitation(uri, title string) Citation {
	if title == "" {
		title = uri
	}
	return Citation{URI: uri, Title: title}
}

// FeedbackCategory tags a feedback item.
type FeedbackCategory string

// Feedback categories.
const (
	FeedbackGrammar       FeedbackCategory = "grammar"
	FeedbackPronunciation FeedbackCategory = "pronunciation"
	FeedbackVocabulary    FeedbackCategory = "vocabulary"
	FeedbackFluency       FeedbackCategory = "fluency"
	FeedbackGeneral       FeedbackCategory = "general"
)

// NormalizeFeedbackCategory maps unknown categories to FeedbackGeneral.
func NormalizeFeedbackCategory(s string) FeedbackCategory {
	switch c := FeedbackCategory(s); c {
	case FeedbackGrammar, FeedbackPronunciation, FeedbackVocabulary, FeedbackFluency, FeedbackGeneral:
		return c
	default:
		return FeedbackGeneral
	}
}

// FeedbackItem is one piece of linguistic feedback on a user message.
type FeedbackItem struct {
	Category   FeedbackCategory `json:"type"`
	Message    string           `json:"message"`
	Suggestion string           `json:"suggestion,omitempty"`
}

// Message is one entry in a conversation log.
type Message struct {
	ID              string         `json:"id"`
	Text            string         `json:"text"`
	Sender          Sender         `json:"sender"`
	CreatedAt       time.Time      `json:"created_at"`
	Citations       []Citation     `json:"citations,omitempty"`
	Feedback        []FeedbackItem `json:"feedback,omitempty"`
	FeedbackPending bool           `json:"feedback_pending,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.Citations != nil {
		m.Citations = append([]Citation(nil), m.Citations...)
	}
	if m.Feedback != nil {
		m.Feedback = append([]FeedbackItem(nil), m.Feedback...)
	}
	return m
}
