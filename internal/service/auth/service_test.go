package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hoaquangthang/a-seed/backend/internal/config"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

func newService() (*Service, *store.MemStore) {
	st := store.NewMemStore()
	svc := NewService(st, config.AuthConfig{JWTSecret: "test-secret", TokenTTLH: 1})
	return svc, st
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, token, err := svc.Register(ctx, "alice", "Alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if token == "" {
		t.Fatal("register must return a token")
	}

	userID, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != created.ID {
		t.Fatalf("token user = %q, want %q", userID, created.ID)
	}

	loggedIn, _, err := svc.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != created.ID {
		t.Fatalf("login returned wrong user: %q", loggedIn.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "wrong password!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like bad credentials, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "alice", "", "another password!"); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("want ErrUserExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "  ", "", "correct horse battery"); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("want ErrUsernameRequired, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "bob", "", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	svc, st := newService()
	other := NewService(st, config.AuthConfig{JWTSecret: "different-secret", TokenTTLH: 1})

	_, token, err := other.Register(context.Background(), "alice", "", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("token signed with another secret must fail, got %v", err)
	}
}
