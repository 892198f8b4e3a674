package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/belai/internal/conversation"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/middleware"
	"github.com/ashureev/belai/internal/speech"
)

// Frame types exchanged with clients.
const (
	frameEvent            = "event"
	frameSnapshot         = "snapshot"
	framePing             = "ping"
	framePong             = "pong"
	frameCapabilities     = "capabilities"
	frameTranscript       = "transcript"
	frameRecognitionError = "recognition_error"
	frameRecognitionEnd   = "recognition_end"
	frameSpeechEnded      = "speech_ended"
	frameError            = "error"

	// FrameRecognitionStart and FrameRecognitionStop ask clients to start
	// and stop capturing speech.
	FrameRecognitionStart = "recognition_start"
	FrameRecognitionStop  = "recognition_stop"
)

const writeTimeout = 10 * time.Second

// inboundFrame is any message a client sends.
type inboundFrame struct {
	Type string `json:"type"`

	// capabilities
	Synthesis   bool           `json:"synthesis,omitempty"`
	Recognition bool           `json:"recognition,omitempty"`
	Voices      []domain.Voice `json:"voices,omitempty"`

	// transcript
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// recognition_error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// speech_ended
	UtteranceID string `json:"utterance_id,omitempty"`
}

// ControlFrame is a bare typed message sent to clients.
type ControlFrame struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// SnapshotFrame is the first message a client receives.
type SnapshotFrame struct {
	Type         string                `json:"type"`
	Conversation conversation.Snapshot `json:"conversation"`
	Settings     domain.UserSettings   `json:"settings"`
	Progress     domain.ProgressState  `json:"progress"`
}

// Handler upgrades HTTP requests to WebSocket clients of the hub.
type Handler struct {
	hub        *Hub
	orch       *conversation.Orchestrator
	player     *speech.RemotePlayer
	recognizer *speech.StreamRecognizer
	// allowedOrigins are trusted besides the server's own origin.
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandler creates a WebSocket handler. player and recognizer may be nil
// when the server performs speech itself.
func NewHandler(hub *Hub, orch *conversation.Orchestrator, player *speech.RemotePlayer, recognizer *speech.StreamRecognizer, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:            hub,
		orch:           orch,
		player:         player,
		recognizer:     recognizer,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	h.logger.Info("WebSocket connection request", "client_id", clientID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr, "client_id", clientID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.writeJSON(ctx, ws, h.snapshot()); err != nil {
		h.logger.Debug("failed to send snapshot", "error", err, "client_id", clientID)
		return
	}

	c := h.hub.Register(clientID, ws)
	defer h.hub.Unregister(c)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, clientID)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, c)
	}()

	wg.Wait()
	h.logger.Info("realtime session ended", "client_id", clientID)
}

func (h *Handler) snapshot() SnapshotFrame {
	return SnapshotFrame{
		Type:         frameSnapshot,
		Conversation: h.orch.Snapshot(),
		Settings:     h.orch.Settings(),
		Progress:     h.orch.Progress(),
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if middleware.OriginAllowed(r, h.allowedOrigins) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", r.Header.Get("Origin"), "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, clientID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "client_id", clientID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "client_id", clientID)
			}
			return
		}

		var frame inboundFrame
		if err := sonic.Unmarshal(message, &frame); err != nil {
			h.logger.Debug("ignoring malformed frame", "client_id", clientID, "error", err)
			if err := h.writeJSON(ctx, ws, ControlFrame{Type: frameError, Error: "malformed frame"}); err != nil {
				return
			}
			continue
		}

		if reply, ok := h.dispatch(ctx, clientID, frame); ok {
			if err := h.writeJSON(ctx, ws, reply); err != nil {
				h.logger.Debug("failed to reply", "error", err, "client_id", clientID)
				return
			}
		}
	}
}

// dispatch applies one inbound frame. It returns a direct reply when the
// frame calls for one.
func (h *Handler) dispatch(ctx context.Context, clientID string, frame inboundFrame) (any, bool) {
	switch frame.Type {
	case framePing:
		return ControlFrame{Type: framePong}, true
	case frameCapabilities:
		h.logger.Info("client speech capabilities",
			"client_id", clientID,
			"synthesis", frame.Synthesis,
			"recognition", frame.Recognition,
			"voices", len(frame.Voices))
		if h.player != nil {
			h.player.SetCapabilities(frame.Synthesis, frame.Voices)
		}
		if h.recognizer != nil {
			h.recognizer.SetSupported(frame.Recognition)
		}
		if len(frame.Voices) > 0 {
			if err := h.orch.VoicesAvailable(ctx, frame.Voices); err != nil {
				h.logger.Warn("failed to select default voice", "error", err)
			}
		}
	case frameTranscript:
		if h.recognizer != nil {
			h.recognizer.Push(speech.Transcript{Text: frame.Text, Final: frame.Final})
		}
	case frameRecognitionError:
		code := frame.Code
		if !speech.KnownRecognitionCode(code) {
			h.logger.Debug("unknown recognition error code", "code", code)
		}
		if h.recognizer != nil {
			h.recognizer.Fail(code, frame.Message)
		}
	case frameRecognitionEnd:
		if h.recognizer != nil {
			h.recognizer.End()
		}
	case frameSpeechEnded:
		h.logger.Debug("utterance finished", "client_id", clientID, "utterance_id", frame.UtteranceID)
	default:
		h.logger.Debug("ignoring unknown frame", "client_id", clientID, "type", frame.Type)
	}
	return nil, false
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "client_id", c.id)
				}
				return
			}
		}
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
