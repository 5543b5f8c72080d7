package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/analysis/emotion"
	chatmodel "github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/model/user"
	"github.com/hoaquangthang/a-seed/backend/internal/service/ai"
	"github.com/hoaquangthang/a-seed/backend/internal/service/memory"
	trendsvc "github.com/hoaquangthang/a-seed/backend/internal/service/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

type stubGenerator struct {
	raw     string
	err     error
	lastReq ai.Request
}

func (g *stubGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	g.lastReq = req
	if g.err != nil {
		return "", g.err
	}
	return g.raw, nil
}

func newFixture(t *testing.T, gen Generator) (*Service, *store.MemStore, chatmodel.Session) {
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
	return NewService(st, mem, gen, trends, 10), st, session
}

func TestExchangeHappyPath(t *testing.T) {
	gen := &stubGenerator{raw: `{"reply": "That sounds hard. I'm here.", "emotion": "sadness"}`}
	svc, st, session := newFixture(t, gen)
	ctx := context.Background()

	result, err := svc.Exchange(ctx, session.UserID, session.ID, "I had an awful day")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if result.Reply != "That sounds hard. I'm here." {
		t.Fatalf("unexpected reply %q", result.Reply)
	}
	if result.Emotion != emotion.Sadness {
		t.Fatalf("emotion = %s, want sadness", result.Emotion)
	}

	history, err := st.History(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user+assistant turns, got %d", len(history))
	}
	if history[0].Role != chatmodel.RoleUser || history[1].Role != chatmodel.RoleAssistant {
		t.Fatalf("turn roles out of order: %+v", history)
	}
	if history[1].Emotion != "sadness" {
		t.Fatalf("assistant turn emotion = %q", history[1].Emotion)
	}
	if history[0].TurnID != 1 || history[1].TurnID != 2 {
		t.Fatalf("turn ids not sequential: %d, %d", history[0].TurnID, history[1].TurnID)
	}
}

func TestExchangeGenerationFailureKeepsUserTurn(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream 500")}
	svc, st, session := newFixture(t, gen)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, session.UserID, session.ID, "are you there?")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want ErrGenerationFailed, got %v", err)
	}

	history, _ := st.History(ctx, session.ID, 0)
	if len(history) != 1 {
		t.Fatalf("only the user turn should survive, got %d turns", len(history))
	}
	if history[0].Role != chatmodel.RoleUser {
		t.Fatalf("surviving turn should be the user's, got %s", history[0].Role)
	}

	// A retry continues the sequence without gaps.
	gen.err = nil
	gen.raw = `{"reply": "Yes, I'm here.", "emotion": "neutral"}`
	if _, err := svc.Exchange(ctx, session.UserID, session.ID, "are you there?"); err != nil {
		t.Fatalf("retry Exchange: %v", err)
	}
	history, _ = st.History(ctx, session.ID, 0)
	for i, turn := range history {
		if turn.TurnID != int64(i+1) {
			t.Fatalf("gap in turn ids after retry: %+v", history)
		}
	}
}

func TestExchangeCancelledContextIsAborted(t *testing.T) {
	gen := &stubGenerator{err: context.Canceled}
	svc, _, session := newFixture(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Exchange(ctx, session.UserID, session.ID, "never mind")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("want ErrAborted on cancelled context, got %v", err)
	}
}

func TestExchangeUnparseableReplyDefaultsNeutral(t *testing.T) {
	gen := &stubGenerator{raw: "I'm glad you reached out."}
	svc, _, session := newFixture(t, gen)

	result, err := svc.Exchange(context.Background(), session.UserID, session.ID, "hi")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if result.Emotion != emotion.Neutral {
		t.Fatalf("plain-text reply must classify neutral, got %s", result.Emotion)
	}
	if result.Reply != "I'm glad you reached out." {
		t.Fatalf("raw text should survive as the reply, got %q", result.Reply)
	}
}

func TestExchangeRejectsForeignSession(t *testing.T) {
	gen := &stubGenerator{raw: `{"reply": "hello", "emotion": "joy"}`}
	svc, st, session := newFixture(t, gen)
	ctx := context.Background()

	intruder := user.User{ID: "u2", Username: "mallory", CreatedAt: time.Now().UTC()}
	if err := st.CreateUser(ctx, intruder); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := svc.Exchange(ctx, intruder.ID, session.ID, "what did alice say?")
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("foreign session must look missing, got %v", err)
	}

	if _, err := svc.History(ctx, intruder.ID, session.ID, 0); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("History must enforce ownership too, got %v", err)
	}
}

func TestExchangeEmptyMessageRejected(t *testing.T) {
	svc, _, session := newFixture(t, &stubGenerator{raw: "{}"})

	if _, err := svc.Exchange(context.Background(), session.UserID, session.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
}

func TestExchangePassesGroundingAndHistory(t *testing.T) {
	gen := &stubGenerator{raw: `{"reply": "noted", "emotion": "neutral"}`}
	svc, _, session := newFixture(t, gen)
	ctx := context.Background()

	if _, err := svc.Exchange(ctx, session.UserID, session.ID, "first message"); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if _, err := svc.Exchange(ctx, session.UserID, session.ID, "second message"); err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if gen.lastReq.Message != "second message" {
		t.Fatalf("query = %q", gen.lastReq.Message)
	}
	if len(gen.lastReq.History) != 2 {
		t.Fatalf("history should hold the first round trip, got %d turns", len(gen.lastReq.History))
	}
	if len(gen.lastReq.Grounding) == 0 {
		t.Fatal("grounding context should include the recency window")
	}
}
