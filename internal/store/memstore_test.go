package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
)

func seedUserSession(t *testing.T, s *MemStore, username string) (user.User, chat.Session) {
	t.Helper()
	ctx := context.Background()

	u := user.User{ID: username + "-id", Username: username, CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session, err := s.CreateSession(ctx, u.ID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return u, session
}

func TestAppendTurnUnknownSession(t *testing.T) {
	s := NewMemStore()
	if _, err := s.AppendTurn(context.Background(), "missing", chat.RoleUser, "hi", ""); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConcurrentAppendsKeepTurnIDsGapFree(t *testing.T) {
	s := NewMemStore()
	_, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AppendTurn(ctx, session.ID, chat.RoleUser, "msg", ""); err != nil {
				t.Errorf("AppendTurn: %v", err)
			}
		}()
	}
	wg.Wait()

	turns, err := s.History(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != n {
		t.Fatalf("expected %d turns, got %d", n, len(turns))
	}
	for i, turn := range turns {
		if turn.TurnID != int64(i+1) {
			t.Fatalf("turn %d has id %d, want %d (gap or reorder)", i, turn.TurnID, i+1)
		}
	}
}

func TestHistoryLimitKeepsMostRecent(t *testing.T) {
	s := NewMemStore()
	_, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.AppendTurn(ctx, session.ID, chat.RoleUser, "msg", ""); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, err := s.History(ctx, session.ID, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 || turns[0].TurnID != 4 || turns[1].TurnID != 5 {
		t.Fatalf("unexpected window: %+v", turns)
	}
}

func TestEmotionOnlyKeptForAssistantTurns(t *testing.T) {
	s := NewMemStore()
	_, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	userTurn, _ := s.AppendTurn(ctx, session.ID, chat.RoleUser, "hello", "joy")
	if userTurn.Emotion != "" {
		t.Fatalf("user turn must not carry an emotion, got %q", userTurn.Emotion)
	}
	assistantTurn, _ := s.AppendTurn(ctx, session.ID, chat.RoleAssistant, "hi there", "joy")
	if assistantTurn.Emotion != "joy" {
		t.Fatalf("assistant turn lost its emotion: %q", assistantTurn.Emotion)
	}
}

func TestSearchIsScopedToUser(t *testing.T) {
	s := NewMemStore()
	alice, aliceSession := seedUserSession(t, s, "alice")
	bob, bobSession := seedUserSession(t, s, "bob")
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	mustInsert(t, s, memory.Record{UserID: alice.ID, SessionID: aliceSession.ID, TurnID: 1, Embedding: vec, Snippet: "alice secret"})
	mustInsert(t, s, memory.Record{UserID: bob.ID, SessionID: bobSession.ID, TurnID: 1, Embedding: vec, Snippet: "bob secret"})

	hits, err := s.Search(ctx, alice.ID, vec, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Snippet == "bob secret" {
			t.Fatal("cross-user leakage: bob's record surfaced for alice")
		}
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly alice's record, got %d hits", len(hits))
	}
}

func TestSearchOrdersByScoreThenRecency(t *testing.T) {
	s := NewMemStore()
	alice, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	base := time.Now().UTC()
	old := memory.Record{UserID: alice.ID, SessionID: session.ID, TurnID: 1,
		Embedding: []float32{1, 0}, Snippet: "old", CreatedAt: base}
	newer := memory.Record{UserID: alice.ID, SessionID: session.ID, TurnID: 2,
		Embedding: []float32{1, 0}, Snippet: "newer", CreatedAt: base.Add(time.Minute)}
	offAxis := memory.Record{UserID: alice.ID, SessionID: session.ID, TurnID: 3,
		Embedding: []float32{0, 1}, Snippet: "unrelated", CreatedAt: base.Add(2 * time.Minute)}
	mustInsert(t, s, old)
	mustInsert(t, s, newer)
	mustInsert(t, s, offAxis)

	hits, err := s.Search(ctx, alice.ID, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Snippet != "newer" || hits[1].Snippet != "old" {
		t.Fatalf("tie should prefer the more recent turn: %+v", hits)
	}
}

func TestSearchReturnsAllWhenFewerThanK(t *testing.T) {
	s := NewMemStore()
	alice, session := seedUserSession(t, s, "alice")

	mustInsert(t, s, memory.Record{UserID: alice.ID, SessionID: session.ID, TurnID: 1,
		Embedding: []float32{1, 0}, Snippet: "only"})

	hits, err := s.Search(context.Background(), alice.ID, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit without error, got %d", len(hits))
	}
}

func TestInsertIsIdempotentPerTurn(t *testing.T) {
	s := NewMemStore()
	alice, session := seedUserSession(t, s, "alice")
	rec := memory.Record{UserID: alice.ID, SessionID: session.ID, TurnID: 1,
		Embedding: []float32{1, 0}, Snippet: "once"}
	mustInsert(t, s, rec)
	mustInsert(t, s, rec)

	hits, _ := s.Search(context.Background(), alice.ID, []float32{1, 0}, 10)
	if len(hits) != 1 {
		t.Fatalf("duplicate insert slipped through: %d hits", len(hits))
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := NewMemStore()
	_, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	turn, err := s.AppendTurn(ctx, session.ID, chat.RoleUser, "remember me", "")
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := s.AttachEmbedding(ctx, session.ID, turn.TurnID, []float32{0.5, 0.5}); err != nil {
		t.Fatalf("AttachEmbedding: %v", err)
	}

	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	first, _ := s.Search(ctx, session.UserID, []float32{0.5, 0.5}, 10)

	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	second, _ := s.Search(ctx, session.UserID, []float32{0.5, 0.5}, 10)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("rebuild changed result counts: %d vs %d", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Fatalf("rebuild changed query results: %+v vs %+v", first[0], second[0])
	}
}

func TestTurnsForUserWindowsByTime(t *testing.T) {
	s := NewMemStore()
	alice, session := seedUserSession(t, s, "alice")
	ctx := context.Background()

	before := time.Now().UTC()
	if _, err := s.AppendTurn(ctx, session.ID, chat.RoleAssistant, "hi", "joy"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	turns, err := s.TurnsForUser(ctx, alice.ID, before)
	if err != nil {
		t.Fatalf("TurnsForUser: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected the fresh turn, got %d", len(turns))
	}

	turns, err = s.TurnsForUser(ctx, alice.ID, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("TurnsForUser: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("future cutoff should exclude everything, got %d", len(turns))
	}
}

func mustInsert(t *testing.T, s *MemStore, rec memory.Record) {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}
