// Package chat orchestrates one conversational exchange end to end: ownership
// checks, the user-turn append, grounding composition, generation, emotion
// extraction, the assistant-turn append and the trend report for the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/hoaquangthang/a-seed/backend/internal/analysis/emotion"
	trendanalysis "github.com/hoaquangthang/a-seed/backend/internal/analysis/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/service/ai"
	"github.com/hoaquangthang/a-seed/backend/internal/service/memory"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

var (
	ErrEmptyMessage     = errors.New("message text is required")
	ErrGenerationFailed = errors.New("reply generation failed")
	ErrAborted          = errors.New("exchange aborted")
)

// Generator produces a raw structured reply for one exchange. *ai.Service
// satisfies it; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

// StreamGenerator additionally streams the raw reply chunk by chunk.
type StreamGenerator interface {
	Generator
	Stream(ctx context.Context, req ai.Request) (*schema.StreamReader[*schema.Message], error)
}

// TrendAnalyzer computes the rolling mood report for a user.
type TrendAnalyzer interface {
	Analyze(ctx context.Context, userID string) (trendanalysis.Report, error)
}

// Service sequences exchanges over the turn store.
type Service struct {
	turns         store.TurnStore
	memory        *memory.Service
	generator     Generator
	trends        TrendAnalyzer
	historyWindow int
}

// NewService wires the orchestrator. generator may be nil when no model is
// configured; Exchange then fails with ErrGenerationFailed and the user turn
// is still recorded.
func NewService(turns store.TurnStore, mem *memory.Service, generator Generator, trends TrendAnalyzer, historyWindow int) *Service {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Service{
		turns:         turns,
		memory:        mem,
		generator:     generator,
		trends:        trends,
		historyWindow: historyWindow,
	}
}

// ExchangeResult is the complete outcome of one exchange.
type ExchangeResult struct {
	UserTurn      chat.Turn
	AssistantTurn chat.Turn
	Reply         string
	Emotion       emotion.Label
	Trend         trendanalysis.Report
}

// CreateSession opens a fresh conversation for the user.
func (s *Service) CreateSession(ctx context.Context, userID, title string) (chat.Session, error) {
	return s.turns.CreateSession(ctx, userID, title)
}

// ListSessions returns the user's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]chat.Session, error) {
	return s.turns.ListSessions(ctx, userID)
}

// History returns the session transcript, oldest first. Sessions owned by
// other users are indistinguishable from missing ones.
func (s *Service) History(ctx context.Context, userID, sessionID string, limit int) ([]chat.Turn, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.turns.History(ctx, sessionID, limit)
}

// Trend exposes the mood report directly, outside any exchange.
func (s *Service) Trend(ctx context.Context, userID string) (trendanalysis.Report, error) {
	return s.trends.Analyze(ctx, userID)
}

// Exchange runs one full user/assistant round trip. The user turn is durable
// before generation starts; if generation fails the turn stays and no
// assistant turn is written, so a retry simply continues the conversation.
func (s *Service) Exchange(ctx context.Context, userID, sessionID, text string) (ExchangeResult, error) {
	return s.exchange(ctx, userID, sessionID, text, nil)
}

// ExchangeStream behaves like Exchange but forwards raw reply chunks through
// onDelta as they arrive. The result still carries the parsed reply.
func (s *Service) ExchangeStream(ctx context.Context, userID, sessionID, text string, onDelta func(chunk string)) (ExchangeResult, error) {
	return s.exchange(ctx, userID, sessionID, text, onDelta)
}

func (s *Service) exchange(ctx context.Context, userID, sessionID, text string, onDelta func(string)) (ExchangeResult, error) {
	if strings.TrimSpace(text) == "" {
		return ExchangeResult{}, ErrEmptyMessage
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return ExchangeResult{}, err
	}

	// Snapshot the recency window before this message joins it.
	history, err := s.turns.History(ctx, sessionID, s.historyWindow)
	if err != nil {
		return ExchangeResult{}, err
	}

	userTurn, err := s.turns.AppendTurn(ctx, sessionID, chat.RoleUser, text, "")
	if err != nil {
		return ExchangeResult{}, err
	}

	trendBefore := s.trendOrZero(ctx, userID)
	grounding := s.memory.Compose(ctx, userID, text, history)

	raw, err := s.generate(ctx, ai.Request{
		History:   history,
		Message:   text,
		Grounding: grounding,
		Trend:     trendBefore,
	}, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			return ExchangeResult{UserTurn: userTurn}, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		return ExchangeResult{UserTurn: userTurn}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	reply, label := emotion.ExtractReply(raw)
	assistantTurn, err := s.turns.AppendTurn(ctx, sessionID, chat.RoleAssistant, reply, string(label))
	if err != nil {
		return ExchangeResult{UserTurn: userTurn}, err
	}

	s.memory.RememberAsync(session, userTurn, assistantTurn)

	return ExchangeResult{
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		Reply:         reply,
		Emotion:       label,
		Trend:         s.trendOrZero(ctx, userID),
	}, nil
}

func (s *Service) generate(ctx context.Context, req ai.Request, onDelta func(string)) (string, error) {
	if s.generator == nil {
		return "", errors.New("no chat model configured")
	}

	streamer, ok := s.generator.(StreamGenerator)
	if onDelta == nil || !ok {
		return s.generator.Generate(ctx, req)
	}

	stream, err := streamer.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if msg.Content != "" {
			onDelta(msg.Content)
		}
		chunks = append(chunks, msg)
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to assemble streamed reply: %w", err)
	}
	return full.Content, nil
}

// ownedSession resolves the session and enforces the ownership boundary.
func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (chat.Session, error) {
	session, err := s.turns.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if session.UserID != userID {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) trendOrZero(ctx context.Context, userID string) trendanalysis.Report {
	if s.trends == nil {
		return trendanalysis.Report{DominantEmotion: emotion.Neutral}
	}
	report, err := s.trends.Analyze(ctx, userID)
	if err != nil {
		log.Printf("[chat] trend analysis failed for user %s: %v", userID, err)
		return trendanalysis.Report{DominantEmotion: emotion.Neutral}
	}
	return report
}
