// Package store defines the persistence contracts for users, sessions, turns
// and memory records. The turn log is the authority; the memory index is a
// derived structure that can always be rebuilt from it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
)

// TurnStore is the append-only conversation log. Appends are durable before
// the call returns and serialized per session so turn IDs stay monotonic and
// gap-free.
type TurnStore interface {
	CreateSession(ctx context.Context, userID, title string) (chat.Session, error)
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	ListSessions(ctx context.Context, userID string) ([]chat.Session, error)

	// AppendTurn assigns the next turn ID within the session. emotionLabel is
	// only meaningful for assistant turns and may be empty.
	AppendTurn(ctx context.Context, sessionID string, role chat.Role, text, emotionLabel string) (chat.Turn, error)
	// History returns turns oldest-to-newest; limit > 0 keeps only the most
	// recent limit turns.
	History(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error)
	// TurnsForUser supports the trend analyzer's windowed scan across every
	// session the user owns.
	TurnsForUser(ctx context.Context, userID string, since time.Time) ([]chat.Turn, error)
	// AttachEmbedding records the computed vector on a turn so the memory
	// index stays rebuildable from the turn log alone.
	AttachEmbedding(ctx context.Context, sessionID string, turnID int64, vec []float32) error
}

// MemoryIndex is the per-user nearest-neighbour index over memory records.
// Every query is scoped to one user; cross-user leakage is a correctness bug,
// not a quality bug.
type MemoryIndex interface {
	Insert(ctx context.Context, rec memory.Record) error
	// Search returns up to k hits by descending cosine similarity; ties prefer
	// the more recent turn. Fewer than k records is not an error.
	Search(ctx context.Context, userID string, vec []float32, k int) ([]memory.Hit, error)
	// Rebuild re-derives the index from embedded turns. It is idempotent.
	Rebuild(ctx context.Context) error
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) error
	GetUserByName(ctx context.Context, username string) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
}

// Stats is a small ops snapshot for the stats endpoint.
type Stats struct {
	Users    int `json:"users"`
	Sessions int `json:"sessions"`
	Turns    int `json:"turns"`
	Memories int `json:"memories"`
}

// StatsReader exposes coarse store counters.
type StatsReader interface {
	Stats(ctx context.Context) (Stats, error)
}
