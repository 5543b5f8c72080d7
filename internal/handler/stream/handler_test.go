package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoaquangthang/a-seed/backend/internal/middleware"
	chatmodel "github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
	"github.com/hoaquangthang/a-seed/backend/internal/service/ai"
	chatservice "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/service/memory"
	trendsvc "github.com/hoaquangthang/a-seed/backend/internal/service/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

type staticVerifier struct{ userID string }

func (v staticVerifier) Verify(string) (string, error) { return v.userID, nil }

type stubGenerator struct{ raw string }

func (g stubGenerator) Generate(context.Context, ai.Request) (string, error) {
	return g.raw, nil
}

func setupRouter(t *testing.T) (*chi.Mux, chatmodel.Session) {
	t.Helper()
	st := store.NewMemStore()
	ctx := context.Background()

	u := user.User{ID: "u1", Username: "alice", CreatedAt: time.Now().UTC()}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session, err := st.CreateSession(ctx, u.ID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	mem := memory.NewService(st, st, nil, 5)
	trends := trendsvc.NewService(st, 5, 3)
	gen := stubGenerator{raw: `{"reply": "Take a breath. I'm here.", "emotion": "neutral"}`}
	chatSvc := chatservice.NewService(st, mem, gen, trends, 10)

	r := chi.NewRouter()
	r.Use(middleware.RequireAuth(staticVerifier{userID: u.ID}))
	New(chatSvc).RegisterRoutes(r)
	return r, session
}

func TestStreamEmitsLifecycleEvents(t *testing.T) {
	r, session := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+session.ID+"?message=rough+day", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	body := resp.Body.String()
	for _, event := range []string{"event: start", "event: message", "event: trend", "event: end"} {
		if !strings.Contains(body, event) {
			t.Fatalf("missing %q in stream:\n%s", event, body)
		}
	}
	if !strings.Contains(body, "Take a breath. I'm here.") {
		t.Fatalf("reply missing from stream:\n%s", body)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	r, session := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+session.ID, nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamUnknownSessionEmitsError(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/stream/no-such-session?message=hi", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	body := resp.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "session not found") {
		t.Fatalf("expected error event, got:\n%s", body)
	}
}
