// Package ws serves the bidirectional chat channel. Unlike the SSE endpoint it
// lets the client interrupt an in-flight reply with a stop frame.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hoaquangthang/a-seed/backend/internal/middleware"
	chatservice "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

// Handler upgrades chat connections and runs exchanges over them.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the chat channel.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleConnection)
}

type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type outboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	Trend     any    `json:"trend,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connState guards the single in-flight exchange per connection.
type connState struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	running bool
}

func (c *connState) send(frame outboundFrame) {
	frame.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}

func (c *connState) begin(cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	c.cancel = cancel
	return true
}

func (c *connState) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.cancel = nil
}

func (c *connState) stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

func (h *Handler) handleConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID := middleware.UserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	state := &connState{conn: conn}
	defer state.stop()

	log.Printf("[ws] connected, session=%s", sessionID)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		switch frame.Type {
		case "message":
			h.handleMessage(state, sessionID, userID, frame.Message)
		case "stop":
			if state.stop() {
				state.send(outboundFrame{Type: "stopped", SessionID: sessionID})
			}
		case "ping":
			state.send(outboundFrame{Type: "pong", SessionID: sessionID})
		default:
			state.send(outboundFrame{Type: "error", SessionID: sessionID, Error: "unknown frame type"})
		}
	}
}

func (h *Handler) handleMessage(state *connState, sessionID, userID, message string) {
	ctx, cancel := context.WithCancel(context.Background())
	if !state.begin(cancel) {
		cancel()
		state.send(outboundFrame{Type: "error", SessionID: sessionID, Error: "an exchange is already running"})
		return
	}

	go func() {
		defer state.finish()
		defer cancel()

		result, err := h.chatSvc.ExchangeStream(ctx, userID, sessionID, message, func(chunk string) {
			state.send(outboundFrame{Type: "delta", SessionID: sessionID, Content: chunk})
		})
		if err != nil {
			if errors.Is(err, chatservice.ErrAborted) {
				// The stop frame already answered.
				return
			}
			state.send(outboundFrame{Type: "error", SessionID: sessionID, Error: wsErrorMessage(err)})
			return
		}

		state.send(outboundFrame{
			Type:      "message",
			SessionID: sessionID,
			Content:   result.Reply,
			Emotion:   string(result.Emotion),
		})
		state.send(outboundFrame{Type: "trend", SessionID: sessionID, Trend: result.Trend})
	}()
}

func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return "message is required"
	default:
		return "reply generation failed"
	}
}
