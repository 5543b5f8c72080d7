package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hoaquangthang/a-seed/backend/internal/config"
	authservice "github.com/hoaquangthang/a-seed/backend/internal/service/auth"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

func setupRouter() *chi.Mux {
	st := store.NewMemStore()
	svc := authservice.NewService(st, config.AuthConfig{JWTSecret: "test-secret", TokenTTLH: 1})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func post(r http.Handler, path string, body map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRegisterLoginFlow(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/auth/register", map[string]string{
		"username": "alice",
		"password": "correct horse battery",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if created.Token == "" {
		t.Fatal("register must return a token")
	}

	resp = post(r, "/auth/login", map[string]string{
		"username": "alice",
		"password": "correct horse battery",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRegisterDuplicateIs409(t *testing.T) {
	r := setupRouter()

	if resp := post(r, "/auth/register", map[string]string{"username": "alice", "password": "correct horse battery"}); resp.Code != http.StatusCreated {
		t.Fatalf("first register failed: %d", resp.Code)
	}
	if resp := post(r, "/auth/register", map[string]string{"username": "alice", "password": "another password!"}); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestLoginBadCredentialsIs401(t *testing.T) {
	r := setupRouter()

	if resp := post(r, "/auth/login", map[string]string{"username": "ghost", "password": "whatever!"}); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRegisterWeakPasswordIs400(t *testing.T) {
	r := setupRouter()

	if resp := post(r, "/auth/register", map[string]string{"username": "bob", "password": "short"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
