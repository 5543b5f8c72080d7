// Package auth handles account registration, login and token issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hoaquangthang/a-seed/backend/internal/config"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUsernameRequired   = errors.New("username is required")
)

// Service issues and verifies bearer tokens over the user store.
type Service struct {
	users  store.UserStore
	secret []byte
	ttl    time.Duration
}

// NewService wires authentication against the configured signing secret.
func NewService(users store.UserStore, cfg config.AuthConfig) *Service {
	return &Service{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(cfg.TokenTTLH) * time.Hour,
	}
}

// Register creates an account and returns a signed token for it.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (user.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.User{}, "", ErrUsernameRequired
	}
	if len(password) < 8 {
		return user.User{}, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if u.DisplayName == "" {
		u.DisplayName = username
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		return user.User{}, "", err
	}

	token, err := s.sign(u.ID)
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

// Login verifies the password and returns a fresh token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (user.User, string, error) {
	u, err := s.users.GetUserByName(ctx, strings.TrimSpace(username))
	if err != nil {
		return user.User{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.sign(u.ID)
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

// UserByID resolves an account from its identifier.
func (s *Service) UserByID(ctx context.Context, id string) (user.User, error) {
	return s.users.GetUser(ctx, id)
}

// Verify parses a bearer token and returns the user ID it was issued for.
func (s *Service) Verify(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidCredentials
	}
	return userID, nil
}

func (s *Service) sign(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
