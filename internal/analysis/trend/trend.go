// Package trend computes the rolling mood-trend signal from emotion-tagged
// assistant turns. The whole computation is a pure function over a snapshot so
// it stays reproducible and trivially testable.
package trend

import (
	"time"

	"github.com/hoaquangthang/a-seed/backend/internal/analysis/emotion"
)

// DefaultWindowDays is the rolling window scanned for mood samples.
const DefaultWindowDays = 5

// DefaultEscalateAfter is how many consecutive trailing negative days trigger
// escalation. Treat it as tunable, not a law.
const DefaultEscalateAfter = 3

// Sample is one emotion observation projected from an assistant turn.
type Sample struct {
	At      time.Time
	Emotion emotion.Label
}

// Report is the advisory mood-trend signal handed to the response generator.
type Report struct {
	Counts             map[emotion.Label]int `json:"counts"`
	DominantEmotion    emotion.Label         `json:"dominantEmotion"`
	NegativeStreakDays int                   `json:"negativeStreakDays"`
	Escalate           bool                  `json:"escalate"`
	WindowDays         int                   `json:"windowDays"`
}

// Analyze buckets the samples inside the window by calendar day (UTC),
// computes each day's dominant emotion (mode, ties broken by earliest
// occurrence), and measures the trailing run of consecutive negative days
// ending today. An empty window is neutral: no recent interaction must never
// look like a crisis.
func Analyze(samples []Sample, now time.Time, windowDays, escalateAfter int) Report {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if escalateAfter <= 0 {
		escalateAfter = DefaultEscalateAfter
	}

	report := Report{
		Counts:          make(map[emotion.Label]int),
		DominantEmotion: emotion.Neutral,
		WindowDays:      windowDays,
	}

	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	byDay := make(map[string][]emotion.Label)
	for _, s := range samples {
		if s.At.Before(cutoff) || s.At.After(now) {
			continue
		}
		report.Counts[s.Emotion]++
		key := dayKey(s.At)
		byDay[key] = append(byDay[key], s.Emotion)
	}

	if len(report.Counts) == 0 {
		return report
	}

	report.DominantEmotion = mode(flatten(samples, cutoff, now))
	report.NegativeStreakDays = trailingNegativeStreak(byDay, now, windowDays)
	report.Escalate = report.NegativeStreakDays >= escalateAfter
	return report
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// flatten returns the in-window samples' labels in observation order, so the
// mode tie-break prefers the earliest-seen label.
func flatten(samples []Sample, cutoff, now time.Time) []emotion.Label {
	out := make([]emotion.Label, 0, len(samples))
	for _, s := range samples {
		if s.At.Before(cutoff) || s.At.After(now) {
			continue
		}
		out = append(out, s.Emotion)
	}
	return out
}

// mode picks the most frequent label; ties go to the label seen first.
func mode(labels []emotion.Label) emotion.Label {
	if len(labels) == 0 {
		return emotion.Neutral
	}

	counts := make(map[emotion.Label]int, len(labels))
	firstSeen := make(map[emotion.Label]int, len(labels))
	for i, l := range labels {
		counts[l]++
		if _, ok := firstSeen[l]; !ok {
			firstSeen[l] = i
		}
	}

	best := labels[0]
	for l, c := range counts {
		if c > counts[best] || (c == counts[best] && firstSeen[l] < firstSeen[best]) {
			best = l
		}
	}
	return best
}

// trailingNegativeStreak counts consecutive negative days ending today. A day
// without samples, or whose dominant emotion is not negative, breaks the run.
func trailingNegativeStreak(byDay map[string][]emotion.Label, now time.Time, windowDays int) int {
	streak := 0
	day := now.UTC()
	for i := 0; i < windowDays; i++ {
		labels, ok := byDay[dayKey(day)]
		if !ok || !mode(labels).Negative() {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
