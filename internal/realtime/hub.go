// Package realtime pushes conversation events to connected browser clients
// over WebSocket and receives their speech capabilities and transcripts.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"

	"github.com/ashureev/belai/internal/conversation"
)

const clientBuffer = 64

// Client is one connected browser tab.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client. A previous connection with the same id is closed.
func (h *Hub) Register(id string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[id]; ok {
		if existing.conn == conn {
			// Same connection registered again: retire the old queue only.
			close(existing.send)
		} else {
			h.closeClient(existing, "client replaced")
		}
	}

	c := &Client{id: id, conn: conn, send: make(chan []byte, clientBuffer)}
	h.clients[id] = c
	h.logger.Info("realtime client registered", "client_id", id, "clients", len(h.clients))
	return c
}

// Unregister removes c if it is still the registered client for its id.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
		close(c.send)
		h.logger.Info("realtime client unregistered", "client_id", c.id, "clients", len(h.clients))
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes v once and queues it for every client. A client whose
// queue is full misses the message.
func (h *Hub) Broadcast(v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode realtime message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("realtime client queue full, dropping message", "client_id", id)
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		h.closeClient(c, "server shutting down")
		delete(h.clients, id)
	}
}

func (h *Hub) closeClient(c *Client, reason string) {
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, reason)
	}
}

// EventFrame carries one orchestrator event to clients.
type EventFrame struct {
	Type  string             `json:"type"`
	Event conversation.Event `json:"event"`
}

// Forward relays orchestrator events to all clients until ctx is done.
func (h *Hub) Forward(ctx context.Context, orch *conversation.Orchestrator) {
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(EventFrame{Type: frameEvent, Event: ev})
		}
	}
}
