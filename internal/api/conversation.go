package api

import (
	"net/http"
)

// GetConversation returns the active conversation.
func (h *Handler) GetConversation(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.orch.Snapshot())
}

// StartConversation starts a conversation and waits for the AI greeting.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	sc, err := h.resolveScenario(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orch.StartConversation(r.Context(), sc); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusCreated, h.orch.Snapshot())
}

type turnRequest struct {
	Text string `json:"text"`
}

// SubmitTurn submits the learner's message and waits for the AI reply.
// Feedback arrives later over the event stream.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orch.SubmitUserTurn(r.Context(), req.Text); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, h.orch.Snapshot())
}

type hintsRequest struct {
	ScenarioContext string  `json:"scenario_context"`
	LastUserMessage *string `json:"last_user_message"`
	LastAIMessage   *string `json:"last_ai_message"`
}

// RequestHints returns phrases the learner could say next. Without a body
// the hints are derived from the active conversation.
func (h *Handler) RequestHints(w http.ResponseWriter, r *http.Request) {
	var req hintsRequest
	if err := decode(r, &req, true); err != nil {
		h.writeError(w, err)
		return
	}

	var hints []string
	if req.ScenarioContext != "" {
		hints = h.orch.RequestHints(r.Context(), req.ScenarioContext, req.LastUserMessage, req.LastAIMessage)
	} else {
		var err error
		hints, err = h.orch.HintsForConversation(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	JSON(w, http.StatusOK, map[string]any{"hints": hints})
}

// EndConversation ends the active conversation.
func (h *Handler) EndConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.EndConversation(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"conversation": h.orch.Snapshot(),
		"progress":     h.orch.Progress(),
	})
}
