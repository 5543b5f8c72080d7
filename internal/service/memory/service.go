// Package memory glues the embedding gateway, the turn log and the vector
// index into the retrieval layer: it remembers finished turns and composes
// grounding context for new messages.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	memorymodel "github.com/hoaquangthang/a-seed/backend/internal/model/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/service/embedder"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

// Service performs semantic remember/recall over a user's whole history.
type Service struct {
	turns    store.TurnStore
	index    store.MemoryIndex
	provider embedder.Provider
	topK     int
}

// NewService wires the retrieval layer. provider may be nil, in which case
// every compose degrades to recency-only context and nothing is remembered.
func NewService(turns store.TurnStore, index store.MemoryIndex, provider embedder.Provider, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{turns: turns, index: index, provider: provider, topK: topK}
}

// Remember embeds the finished turns and inserts one memory record per turn.
// It runs after the turn log append, so a failure here only costs future
// recall, never the exchange itself.
func (s *Service) Remember(ctx context.Context, session chat.Session, turns ...chat.Turn) {
	if s.provider == nil || len(turns) == 0 {
		return
	}

	texts := make([]string, len(turns))
	for i, turn := range turns {
		texts[i] = turn.Text
	}

	vecs, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, embedder.ErrUnavailable) {
			log.Printf("[memory] embedding unavailable, turns not remembered: %v", err)
			return
		}
		log.Printf("[memory] embed failed: %v", err)
		return
	}

	for i, turn := range turns {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		if err := s.turns.AttachEmbedding(ctx, session.ID, turn.TurnID, vecs[i]); err != nil {
			log.Printf("[memory] attach embedding for turn %d: %v", turn.TurnID, err)
		}
		rec := memorymodel.Record{
			UserID:    session.UserID,
			SessionID: session.ID,
			TurnID:    turn.TurnID,
			Embedding: vecs[i],
			Snippet:   turn.Text,
			CreatedAt: turn.CreatedAt,
		}
		if err := s.index.Insert(ctx, rec); err != nil {
			log.Printf("[memory] index insert for turn %d: %v", turn.TurnID, err)
		}
	}
}

// RememberAsync runs Remember on its own bounded context so index updates
// never sit on the request path. Eventual consistency is fine here: the turn
// is already visible in history, it just takes a moment to become searchable.
func (s *Service) RememberAsync(session chat.Session, turns ...chat.Turn) {
	if s.provider == nil || len(turns) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Remember(ctx, session, turns...)
	}()
}

// Compose builds the grounding context for a new message: the recent raw
// turns first (most recent first, for conversational continuity), then the
// semantically retrieved snippets in similarity order. A turn that shows up
// both ways counts once. If embedding is down the recency half still stands;
// a degraded context is a valid context.
func (s *Service) Compose(ctx context.Context, userID, message string, recent []chat.Turn) []string {
	seen := make(map[string]struct{}, len(recent))
	grounding := make([]string, 0, len(recent)+s.topK)

	for i := len(recent) - 1; i >= 0; i-- {
		turn := recent[i]
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		seen[turnKey(turn.SessionID, turn.TurnID)] = struct{}{}
		seen[turn.Text] = struct{}{}
		grounding = append(grounding, formatTurn(turn.Role, turn.Text))
	}

	for _, h := range s.recall(ctx, userID, message) {
		if _, dup := seen[turnKey(h.SessionID, h.TurnID)]; dup {
			continue
		}
		if _, dup := seen[h.Snippet]; dup {
			continue
		}
		seen[h.Snippet] = struct{}{}
		grounding = append(grounding, h.Snippet)
	}
	return grounding
}

func (s *Service) recall(ctx context.Context, userID, message string) []memorymodel.Hit {
	if s.provider == nil || strings.TrimSpace(message) == "" {
		return nil
	}

	vec, err := s.provider.Embed(ctx, message)
	if err != nil {
		// Degrade silently to recency-only grounding.
		log.Printf("[memory] recall skipped: %v", err)
		return nil
	}

	hits, err := s.index.Search(ctx, userID, vec, s.topK)
	if err != nil {
		log.Printf("[memory] search failed: %v", err)
		return nil
	}
	return hits
}

func turnKey(sessionID string, turnID int64) string {
	return fmt.Sprintf("%s#%d", sessionID, turnID)
}

func formatTurn(role chat.Role, text string) string {
	return fmt.Sprintf("%s: %s", role, text)
}
