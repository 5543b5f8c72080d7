// Package auth exposes registration and login over HTTP.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoaquangthang/a-seed/backend/internal/middleware"
	authservice "github.com/hoaquangthang/a-seed/backend/internal/service/auth"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
	"github.com/hoaquangthang/a-seed/backend/pkg/utils"
)

// Handler serves the account endpoints.
type Handler struct {
	authSvc *authservice.Service
}

// New creates the auth handler.
func New(authSvc *authservice.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterRoutes mounts the public account routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterProtectedRoutes mounts the routes that need a verified token.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type credentialsPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.authSvc.Register(r.Context(), payload.Username, payload.DisplayName, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserExists):
			utils.RespondError(w, http.StatusConflict, "username already taken")
		case errors.Is(err, authservice.ErrUsernameRequired), errors.Is(err, authservice.ErrWeakPassword):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{"user": u, "token": token})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.authSvc.UserByID(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "account not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.authSvc.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"user": u, "token": token})
}
