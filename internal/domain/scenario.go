// Package domain contains core domain types for the BelAI practice application.
package domain

import (
	"fmt"
	"strings"
)

// Level is a CEFR proficiency level.
type Level string

// Supported proficiency levels, easiest first.
const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

var levelLabels = map[Level]string{
	LevelA1: "A1 (Beginner)",
	LevelA2: "A2 (Elementary)",
	LevelB1: "B1 (Intermediate)",
	LevelB2: "B2 (Upper Intermediate)",
	LevelC1: "C1 (Advanced)",
	LevelC2: "C2 (Proficiency)",
}

// Levels returns every level in ascending order.
func Levels() []Level {
	return []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}
}

// Label returns the human-readable level name, e.g. "B1 (Intermediate)".
func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return string(l)
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

// ParseLevel accepts a level code ("b1") or a full label ("B1 (Intermediate)").
func ParseLevel(s string) (Level, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(code, ' '); i > 0 {
		code = code[:i]
	}
	l := Level(code)
	if !l.Valid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Scenario is an immutable conversational situation the learner can practice.
type Scenario struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Level             Level  `json:"level"`
	Persona           string `json:"persona"`
	SystemInstruction string `json:"system_instruction"`
	SampleUtterance   string `json:"sample_utterance,omitempty"`
}

// IsCustomTopicTemplate reports whether s is the per-level placeholder that
// prompts the learner for their own topic.
func (s Scenario) IsCustomTopicTemplate() bool {
	return strings.HasSuffix(s.ID, "-custom-topic")
}
