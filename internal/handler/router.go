package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/hoaquangthang/a-seed/backend/internal/handler/auth"
	chatHandler "github.com/hoaquangthang/a-seed/backend/internal/handler/chat"
	opsHandler "github.com/hoaquangthang/a-seed/backend/internal/handler/ops"
	streamHandler "github.com/hoaquangthang/a-seed/backend/internal/handler/stream"
	wsHandler "github.com/hoaquangthang/a-seed/backend/internal/handler/ws"
	middlewarePkg "github.com/hoaquangthang/a-seed/backend/internal/middleware"
	authService "github.com/hoaquangthang/a-seed/backend/internal/service/auth"
	chatService "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(authSvc *authService.Service, chatSvc *chatService.Service, stats store.StatsReader, providers opsHandler.Providers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	accounts := authHandler.New(authSvc)

	r.Route("/api", func(api chi.Router) {
		accounts.RegisterRoutes(api)
		opsHandler.New(stats, providers).RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middlewarePkg.RequireAuth(authSvc))

			accounts.RegisterProtectedRoutes(protected)
			chatHandler.New(chatSvc).RegisterRoutes(protected)
			streamHandler.New(chatSvc).RegisterRoutes(protected)
			wsHandler.New(chatSvc).RegisterRoutes(protected)
		})
	})

	return r
}
