// Package catalog provides the built-in conversation scenarios.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/bytedance/sonic"
)

//go:embed scenarios.json
var scenariosJSON []byte

const customTopicPersona = "a versatile AI chat partner"

type document struct {
	Levels []struct {
		Level     domain.Level      `json:"level"`
		Scenarios []domain.Scenario `json:"scenarios"`
	} `json:"levels"`
}

// Catalog is an immutable set of scenarios keyed by level.
type Catalog struct {
	byLevel map[domain.Level][]domain.Scenario
	byID    map[string]domain.Scenario
}

// Default returns the catalog built from the embedded scenario data.
func Default() (*Catalog, error) {
	return Parse(scenariosJSON)
}

// Parse builds a catalog from a JSON document. Every level also gets a
// custom-topic template appended after its scenarios.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}

	c := &Catalog{
		byLevel: make(map[domain.Level][]domain.Scenario),
		byID:    make(map[string]domain.Scenario),
	}
	for _, section := range doc.Levels {
		if !section.Level.Valid() {
			return nil, fmt.Errorf("scenarios: unknown level %q", section.Level)
		}
		for _, s := range section.Scenarios {
			s.Level = section.Level
			if err := c.add(s); err != nil {
				return nil, err
			}
		}
	}
	for _, level := range domain.Levels() {
		if err := c.add(CustomTopicTemplate(level)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(s domain.Scenario) error {
	if s.ID == "" || s.SystemInstruction == "" {
		return fmt.Errorf("scenarios: %q is missing an id or system instruction", s.Title)
	}
	if _, dup := c.byID[s.ID]; dup {
		return fmt.Errorf("scenarios: duplicate id %q", s.ID)
	}
	c.byID[s.ID] = s
	c.byLevel[s.Level] = append(c.byLevel[s.Level], s)
	return nil
}

// Levels returns the levels in ascending order.
func (c *Catalog) Levels() []domain.Level {
	return domain.Levels()
}

// ScenariosByLevel returns the scenarios for level, custom-topic template last.
func (c *Catalog) ScenariosByLevel(level domain.Level) []domain.Scenario {
	return append([]domain.Scenario(nil), c.byLevel[level]...)
}

// Scenario looks a scenario up by id.
func (c *Catalog) Scenario(id string) (domain.Scenario, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of scenarios, templates included.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// CustomTopicTemplate returns the per-level entry that lets the learner pick
// their own topic.
func CustomTopicTemplate(level domain.Level) domain.Scenario {
	label := level.Label()
	return domain.Scenario{
		ID:          strings.ToLower(string(level)) + "-custom-topic",
		Title:       "Custom Topic",
		Description: fmt.Sprintf("Define your own topic for conversation at the %s. The AI will adapt to discuss what you choose, starting the conversation.", label),
		Level:       level,
		Persona:     customTopicPersona,
		SystemInstruction: fmt.Sprintf("You are a versatile and knowledgeable AI chat partner. The user is an English learner at the %[1]s level. "+
			"Your first task is to start the conversation. The user will specify a topic they wish to discuss, either in their first reply or when you ask for it. "+
			"Greet them and make a general opening remark such as \"Hello! What shall we talk about today?\". "+
			"Adapt your language complexity to their %[1]s level. After your opening, wait for the user to respond.", label),
		SampleUtterance: "I'd like to talk about [your topic here].",
	}
}

// SynthesizeCustomTopic builds a scenario about topic at level. It is pure:
// the id is derived from level and now.
func SynthesizeCustomTopic(level domain.Level, topic string, now time.Time) (domain.Scenario, error) {
	const op = "synthesize custom topic"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.Scenario{}, shared.Usagef(op, "topic is empty")
	}
	if !level.Valid() {
		return domain.Scenario{}, shared.Usagef(op, "unknown level %q", level)
	}

	label := level.Label()
	return domain.Scenario{
		ID:          fmt.Sprintf("custom-%s-%d", strings.ToLower(string(level)), now.UnixMilli()),
		Title:       fmt.Sprintf("Custom Topic (%s): %s", label, topic),
		Description: fmt.Sprintf("A user-defined conversation about: %s (Level: %s)", topic, label),
		Level:       level,
		Persona:     customTopicPersona,
		SystemInstruction: fmt.Sprintf("You are a versatile AI chat partner. The user, an English learner at the %[1]s level, wants to discuss: %[2]q. "+
			"Your first task is to start the conversation. Greet them and make a general opening remark such as \"Hello! What shall we talk about regarding '%[2]s'?\". "+
			"Adapt your language complexity to their %[1]s level. After your opening, wait for the user to respond.", label, topic),
		SampleUtterance: fmt.Sprintf("Let's talk about %s.", topic),
	}, nil
}
