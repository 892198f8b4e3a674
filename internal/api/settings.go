package api

import (
	"net/http"

	"github.com/ashureev/belai/internal/config"
	"github.com/ashureev/belai/internal/settings"
)

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"ai_enabled": h.aiEnabled,
		"speech": map[string]bool{
			"synthesis":   h.orch.Player().Supported(),
			"recognition": h.dictation != nil && h.dictation.Supported(),
		},
	}
	if h.configErr != nil {
		resp["configuration_error"] = config.MissingKeyBanner
	}
	JSON(w, http.StatusOK, resp)
}

// GetSettings returns the learner's settings.
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.orch.Settings())
}

type settingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// PatchSettings updates one setting.
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.orch.UpdateSetting(r.Context(), req.Key, req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, updated)
}

// GetVoices lists the English voices the learner can choose from.
func (h *Handler) GetVoices(w http.ResponseWriter, _ *http.Request) {
	player := h.orch.Player()
	JSON(w, http.StatusOK, map[string]any{
		"supported": player.Supported(),
		"voices":    settings.EnglishVoices(player.Voices()),
		"selected":  h.orch.Settings().SelectedVoiceID,
	})
}

// GetProgress returns the learner's progress counters.
func (h *Handler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.orch.Progress())
}
