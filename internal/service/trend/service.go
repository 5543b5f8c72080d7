// Package trend exposes the mood-trend analyzer over the turn store: it
// projects emotion-tagged assistant turns into samples and hands them to the
// pure analysis in internal/analysis/trend.
package trend

import (
	"context"
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/analysis/emotion"
	trendanalysis "github.com/hoaquangthang/a-seed/backend/internal/analysis/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

// Service computes TrendReports for a user.
type Service struct {
	turns         store.TurnStore
	windowDays    int
	escalateAfter int
	now           func() time.Time
}

// NewService creates the analyzer service. windowDays/escalateAfter fall back
// to the analysis defaults when non-positive.
func NewService(turns store.TurnStore, windowDays, escalateAfter int) *Service {
	if windowDays <= 0 {
		windowDays = trendanalysis.DefaultWindowDays
	}
	if escalateAfter <= 0 {
		escalateAfter = trendanalysis.DefaultEscalateAfter
	}
	return &Service{
		turns:         turns,
		windowDays:    windowDays,
		escalateAfter: escalateAfter,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Analyze scans the user's assistant turns inside the rolling window and
// returns the advisory trend signal.
func (s *Service) Analyze(ctx context.Context, userID string) (trendanalysis.Report, error) {
	now := s.now()
	since := now.Add(-time.Duration(s.windowDays) * 24 * time.Hour)

	turns, err := s.turns.TurnsForUser(ctx, userID, since)
	if err != nil {
		return trendanalysis.Report{}, err
	}

	samples := make([]trendanalysis.Sample, 0, len(turns))
	for _, turn := range turns {
		if turn.Role != chat.RoleAssistant || turn.Emotion == "" {
			continue
		}
		label, ok := emotion.Parse(turn.Emotion)
		if !ok {
			continue
		}
		samples = append(samples, trendanalysis.Sample{At: turn.CreatedAt, Emotion: label})
	}

	return trendanalysis.Analyze(samples, now, s.windowDays, s.escalateAfter), nil
}
