// Package api provides HTTP handlers that expose the conversation
// orchestrator, scenario catalog and learner state to the presentation layer.
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/belai/internal/catalog"
	"github.com/ashureev/belai/internal/conversation"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/speech"
)

const maxBodyBytes = 64 << 10

// Handler serves the practice API.
type Handler struct {
	orch      *conversation.Orchestrator
	catalog   *catalog.Catalog
	dictation *speech.Dictation
	limiter   *RateLimiter
	// configErr is the startup configuration problem shown as a banner.
	configErr error
	aiEnabled bool
	now       func() time.Time
	logger    *slog.Logger
}

// Options configures a Handler.
type Options struct {
	Orchestrator *conversation.Orchestrator
	Catalog      *catalog.Catalog
	// Dictation may be nil when speech capture is unavailable.
	Dictation *speech.Dictation
	// Limiter throttles AI-backed endpoints; nil disables throttling.
	Limiter            *RateLimiter
	ConfigurationError error
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		orch:      opts.Orchestrator,
		catalog:   opts.Catalog,
		dictation: opts.Dictation,
		limiter:   opts.Limiter,
		configErr: opts.ConfigurationError,
		aiEnabled: opts.ConfigurationError == nil,
		now:       now,
		logger:    logger,
	}
}

// RegisterRoutes registers the practice API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/levels", h.GetLevels)
		r.Get("/scenarios", h.GetScenarios)
		r.Post("/scenarios/custom", h.CreateCustomScenario)

		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.PatchSettings)
		r.Get("/voices", h.GetVoices)
		r.Get("/progress", h.GetProgress)

		r.Get("/conversation", h.GetConversation)
		r.Delete("/conversation", h.EndConversation)

		r.Get("/dictation", h.GetDictation)
		r.Post("/dictation", h.StartDictation)
		r.Delete("/dictation", h.StopDictation)

		// AI-backed routes.
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}
			r.Post("/conversation", h.StartConversation)
			r.Post("/conversation/turns", h.SubmitTurn)
			r.Post("/conversation/hints", h.RequestHints)
			r.Post("/dictation/submit", h.SubmitDictation)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeError maps err onto an HTTP status.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsUsageError(err):
		var usage *shared.UsageError
		errors.As(err, &usage)
		Error(w, http.StatusBadRequest, usage.Err.Error())
	case shared.IsCapabilityUnsupported(err):
		Error(w, http.StatusNotImplemented, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON request body into dst. An empty body leaves dst
// unchanged when optional is set.
func decode(r *http.Request, dst any, optional bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return shared.Usagef("decode request", "read body: %v", err)
	}
	if len(body) > maxBodyBytes {
		return shared.Usagef("decode request", "request body too large")
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return shared.Usagef("decode request", "request body is required")
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return &shared.UsageError{Op: "decode request", Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}
