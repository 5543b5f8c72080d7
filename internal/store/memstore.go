package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
)

// MemStore keeps everything in process memory behind a single lock. It backs
// tests and credential-less development; production deployments use PgStore.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]user.User   // by id
	byName   map[string]string      // username -> id
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn     // by session id, append order
	records  map[string][]memory.Record // by user id, append order
	turnVecs map[string]map[int64][]float32
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]user.User),
		byName:   make(map[string]string),
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
		records:  make(map[string][]memory.Record),
		turnVecs: make(map[string]map[int64][]float32),
	}
}

func (s *MemStore) CreateUser(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[u.Username]; ok {
		return ErrUserExists
	}
	s.users[u.ID] = u
	s.byName[u.Username] = u.ID
	return nil
}

func (s *MemStore) GetUserByName(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *MemStore) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemStore) CreateSession(_ context.Context, userID, title string) (chat.Session, error) {
	now := time.Now().UTC()
	session := chat.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        title,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.turns[session.ID] = make([]chat.Turn, 0, 16)
	s.mu.Unlock()

	return session, nil
}

func (s *MemStore) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemStore) ListSessions(_ context.Context, userID string) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

// AppendTurn assigns turn IDs under the store lock, which is what serializes
// concurrent appends to the same session.
func (s *MemStore) AppendTurn(_ context.Context, sessionID string, role chat.Role, text, emotionLabel string) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Turn{}, ErrSessionNotFound
	}

	turn := chat.Turn{
		SessionID: sessionID,
		TurnID:    int64(len(s.turns[sessionID]) + 1),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if role == chat.RoleAssistant {
		turn.Emotion = emotionLabel
	}

	s.turns[sessionID] = append(s.turns[sessionID], turn)
	session.LastActiveAt = turn.CreatedAt
	if session.Title == "" && role == chat.RoleUser {
		session.Title = truncateTitle(text)
	}
	s.sessions[sessionID] = session
	return turn, nil
}

func (s *MemStore) History(_ context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	start := 0
	if limit > 0 && len(turns) > limit {
		start = len(turns) - limit
	}
	out := make([]chat.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out, nil
}

func (s *MemStore) TurnsForUser(_ context.Context, userID string, since time.Time) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chat.Turn
	for sid, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		for _, turn := range s.turns[sid] {
			if !turn.CreatedAt.Before(since) {
				out = append(out, turn)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) AttachEmbedding(_ context.Context, sessionID string, turnID int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i := range turns {
		if turns[i].TurnID == turnID {
			if s.turnVecs[sessionID] == nil {
				s.turnVecs[sessionID] = make(map[int64][]float32)
			}
			s.turnVecs[sessionID][turnID] = append([]float32(nil), vec...)
			return nil
		}
	}
	return ErrSessionNotFound
}

func (s *MemStore) Insert(_ context.Context, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *MemStore) insertLocked(rec memory.Record) error {
	for _, existing := range s.records[rec.UserID] {
		if existing.SessionID == rec.SessionID && existing.TurnID == rec.TurnID {
			return nil // already indexed; async inserts must not duplicate
		}
	}
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
	return nil
}

func (s *MemStore) Search(_ context.Context, userID string, vec []float32, k int) ([]memory.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[userID]
	hits := make([]memory.Hit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, memory.Hit{
			Snippet:   rec.Snippet,
			Score:     cosineSimilarity(vec, rec.Embedding),
			SessionID: rec.SessionID,
			TurnID:    rec.TurnID,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return moreRecent(records, hits[i], hits[j])
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Rebuild re-derives the index from embedded turns. Existing entries are kept;
// duplicates are skipped, so running it twice yields identical query results.
func (s *MemStore) Rebuild(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sid, vecs := range s.turnVecs {
		session, ok := s.sessions[sid]
		if !ok {
			continue
		}
		for _, turn := range s.turns[sid] {
			vec, ok := vecs[turn.TurnID]
			if !ok {
				continue
			}
			_ = s.insertLocked(memory.Record{
				UserID:    session.UserID,
				SessionID: sid,
				TurnID:    turn.TurnID,
				Embedding: vec,
				Snippet:   turn.Text,
				CreatedAt: turn.CreatedAt,
			})
		}
	}
	return nil
}

func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Users: len(s.users), Sessions: len(s.sessions)}
	for _, turns := range s.turns {
		stats.Turns += len(turns)
	}
	for _, recs := range s.records {
		stats.Memories += len(recs)
	}
	return stats, nil
}

// moreRecent prefers the record created later; equal timestamps fall back to
// the higher turn ID.
func moreRecent(records []memory.Record, a, b memory.Hit) bool {
	at, bt := recordTime(records, a), recordTime(records, b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.TurnID > b.TurnID
}

func recordTime(records []memory.Record, h memory.Hit) time.Time {
	for _, rec := range records {
		if rec.SessionID == h.SessionID && rec.TurnID == h.TurnID {
			return rec.CreatedAt
		}
	}
	return time.Time{}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func truncateTitle(text string) string {
	const max = 60
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
