package api

import (
	"net/http"

	"github.com/ashureev/belai/internal/catalog"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
)

type levelView struct {
	Level domain.Level `json:"level"`
	Label string       `json:"label"`
	Count int          `json:"scenario_count"`
}

// GetLevels lists the proficiency levels of the catalog.
func (h *Handler) GetLevels(w http.ResponseWriter, _ *http.Request) {
	levels := h.catalog.Levels()
	out := make([]levelView, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelView{Level: l, Label: l.Label(), Count: len(h.catalog.ScenariosByLevel(l))})
	}
	JSON(w, http.StatusOK, map[string]any{"levels": out})
}

// GetScenarios lists the scenarios of one level, or all of them.
func (h *Handler) GetScenarios(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("level")
	if raw == "" {
		var all []domain.Scenario
		for _, l := range h.catalog.Levels() {
			all = append(all, h.catalog.ScenariosByLevel(l)...)
		}
		JSON(w, http.StatusOK, map[string]any{"scenarios": all})
		return
	}

	level, err := parseLevel(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"level":     level,
		"label":     level.Label(),
		"scenarios": h.catalog.ScenariosByLevel(level),
	})
}

type customTopicRequest struct {
	Level string `json:"level"`
	Topic string `json:"topic"`
}

// CreateCustomScenario synthesizes a scenario for a learner-chosen topic
// without starting it.
func (h *Handler) CreateCustomScenario(w http.ResponseWriter, r *http.Request) {
	var req customTopicRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	sc, err := h.customScenario(req.Level, req.Topic)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusCreated, sc)
}

func (h *Handler) customScenario(rawLevel, topic string) (domain.Scenario, error) {
	level, err := parseLevel(rawLevel)
	if err != nil {
		return domain.Scenario{}, err
	}
	return catalog.SynthesizeCustomTopic(level, topic, h.now())
}

type startRequest struct {
	ScenarioID string `json:"scenario_id"`
	Level      string `json:"level"`
	Topic      string `json:"topic"`
}

// resolveScenario finds the scenario a start request refers to. A custom
// topic template id combined with a topic synthesizes a new scenario.
func (h *Handler) resolveScenario(req startRequest) (domain.Scenario, error) {
	const op = "resolve scenario"

	if req.ScenarioID == "" {
		if req.Topic == "" {
			return domain.Scenario{}, shared.Usagef(op, "scenario_id or topic is required")
		}
		return h.customScenario(req.Level, req.Topic)
	}

	sc, ok := h.catalog.Scenario(req.ScenarioID)
	if !ok {
		return domain.Scenario{}, shared.Usagef(op, "unknown scenario %q", req.ScenarioID)
	}
	if sc.IsCustomTopicTemplate() {
		if req.Topic == "" {
			return domain.Scenario{}, shared.Usagef(op, "a topic is required for %q", sc.ID)
		}
		return catalog.SynthesizeCustomTopic(sc.Level, req.Topic, h.now())
	}
	return sc, nil
}

func parseLevel(raw string) (domain.Level, error) {
	level, err := domain.ParseLevel(raw)
	if err != nil {
		return "", &shared.UsageError{Op: "parse level", Err: err}
	}
	return level, nil
}
