// Package ops serves operational endpoints: health and a coarse service
// snapshot for the admin dashboard.
package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoaquangthang/a-seed/backend/internal/store"
	"github.com/hoaquangthang/a-seed/backend/pkg/utils"
)

// Providers reports which optional collaborators came up at boot.
type Providers struct {
	Generation bool `json:"generation"`
	Embedding  bool `json:"embedding"`
	Postgres   bool `json:"postgres"`
}

// Handler serves the ops surface.
type Handler struct {
	stats     store.StatsReader
	providers Providers
	startedAt time.Time
}

// New creates the ops handler. stats may be nil when the backend does not
// expose counters.
func New(stats store.StatsReader, providers Providers) *Handler {
	return &Handler{
		stats:     stats,
		providers: providers,
		startedAt: time.Now().UTC(),
	}
}

// RegisterRoutes mounts the ops routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/stats", h.handleStats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	UptimeSeconds int64       `json:"uptimeSeconds"`
	Providers     Providers   `json:"providers"`
	Store         store.Stats `json:"store"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Providers:     h.providers,
	}

	if h.stats != nil {
		counters, err := h.stats.Stats(r.Context())
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}
		resp.Store = counters
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}
