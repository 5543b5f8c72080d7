// Package chat serves the session and exchange endpoints.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	trendanalysis "github.com/hoaquangthang/a-seed/backend/internal/analysis/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/middleware"
	chatservice "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
	"github.com/hoaquangthang/a-seed/backend/pkg/utils"
)

// Handler serves the conversation REST surface.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the authenticated conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}/history", h.handleHistory)
	r.Post("/sessions/{sessionID}/messages", h.handleExchange)
	r.Get("/trend", h.handleTrend)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.chatSvc.CreateSession(r.Context(), middleware.UserID(r.Context()), payload.Title)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.ListSessions(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	turns, err := h.chatSvc.History(r.Context(), middleware.UserID(r.Context()), sessionID, limit)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "turns": turns})
}

// exchangeResponse is the blocking (non-streaming) exchange payload.
type exchangeResponse struct {
	Reply       string               `json:"reply"`
	Emotion     string               `json:"emotion"`
	UserTurnID  int64                `json:"userTurnId"`
	ReplyTurnID int64                `json:"replyTurnId"`
	Trend       trendanalysis.Report `json:"trend"`
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.Exchange(r.Context(), middleware.UserID(r.Context()), sessionID, payload.Message)
	if err != nil {
		switch {
		case errors.Is(err, chatservice.ErrEmptyMessage):
			utils.RespondError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, store.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, chatservice.ErrAborted):
			// 499 matches nginx's client-closed-request convention.
			utils.RespondError(w, 499, "exchange aborted")
		default:
			utils.RespondError(w, http.StatusBadGateway, "reply generation failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, exchangeResponse{
		Reply:       result.Reply,
		Emotion:     string(result.Emotion),
		UserTurnID:  result.UserTurn.TurnID,
		ReplyTurnID: result.AssistantTurn.TurnID,
		Trend:       result.Trend,
	})
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	report, err := h.chatSvc.Trend(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "trend analysis failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}
