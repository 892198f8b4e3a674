package api

import (
	"net/http"

	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/speech"
)

type dictationView struct {
	Supported  bool                     `json:"supported"`
	Listening  bool                     `json:"listening"`
	Transcript string                   `json:"transcript"`
	Interim    string                   `json:"interim,omitempty"`
	Error      *speech.RecognitionError `json:"error,omitempty"`
}

func (h *Handler) dictationState() dictationView {
	if h.dictation == nil {
		return dictationView{}
	}
	return dictationView{
		Supported:  h.dictation.Supported(),
		Listening:  h.dictation.Listening(),
		Transcript: h.dictation.Transcript(),
		Interim:    h.dictation.Interim(),
		Error:      h.dictation.Err(),
	}
}

func (h *Handler) requireDictation(w http.ResponseWriter) bool {
	if h.dictation == nil {
		h.writeError(w, &shared.CapabilityUnsupportedError{Capability: "speech recognition"})
		return false
	}
	return true
}

// GetDictation returns the dictation transcript and listening state.
func (h *Handler) GetDictation(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.dictationState())
}

// StartDictation clears the transcript and starts listening.
func (h *Handler) StartDictation(w http.ResponseWriter, _ *http.Request) {
	if !h.requireDictation(w) {
		return
	}
	if err := h.dictation.Start(); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusAccepted, h.dictationState())
}

// StopDictation stops listening and keeps the transcript.
func (h *Handler) StopDictation(w http.ResponseWriter, _ *http.Request) {
	if !h.requireDictation(w) {
		return
	}
	h.dictation.Stop()
	JSON(w, http.StatusOK, h.dictationState())
}

// SubmitDictation stops listening and submits the transcript as a user turn.
func (h *Handler) SubmitDictation(w http.ResponseWriter, r *http.Request) {
	if !h.requireDictation(w) {
		return
	}
	h.dictation.Stop()
	text := h.dictation.Transcript()
	if err := h.orch.SubmitUserTurn(r.Context(), text); err != nil {
		h.writeError(w, err)
		return
	}
	h.dictation.Reset()
	JSON(w, http.StatusOK, h.orch.Snapshot())
}
