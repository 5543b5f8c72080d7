// Package stream serves exchanges over Server-Sent Events so the client can
// render the reply as it is generated.
package stream

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoaquangthang/a-seed/backend/internal/middleware"
	chatservice "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
	"github.com/hoaquangthang/a-seed/backend/pkg/utils"
)

// Handler streams one exchange per request.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the SSE endpoint. EventSource cannot POST, so the
// message travels as a query parameter.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// streamEvent is the payload shape for every SSE event this handler emits.
type streamEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	Trend     any    `json:"trend,omitempty"`
	Error     string `json:"error,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "start", streamEvent{SessionID: sessionID})

	result, err := h.chatSvc.ExchangeStream(r.Context(), middleware.UserID(r.Context()), sessionID, message, func(chunk string) {
		utils.SendSSEEvent(w, flusher, "delta", streamEvent{SessionID: sessionID, Content: chunk})
	})
	if err != nil {
		if errors.Is(err, chatservice.ErrAborted) {
			log.Printf("[stream] client left, session=%s", sessionID)
			return
		}
		utils.SendSSEEvent(w, flusher, "error", streamEvent{SessionID: sessionID, Error: streamErrorMessage(err)})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", streamEvent{
		SessionID: sessionID,
		Content:   result.Reply,
		Emotion:   string(result.Emotion),
	})
	utils.SendSSEEvent(w, flusher, "trend", streamEvent{SessionID: sessionID, Trend: result.Trend})
	utils.SendSSEEvent(w, flusher, "end", streamEvent{SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed exchange, session=%s emotion=%s", sessionID, result.Emotion)
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return "message is required"
	default:
		return "reply generation failed"
	}
}
