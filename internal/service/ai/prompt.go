package ai

import (
	"fmt"
	"log"
	"os"
	"strings"

	trendanalysis "github.com/hoaquangthang/a-seed/backend/internal/analysis/trend"
)

// defaultSystemPrompt is the companion persona used when no prompt file is
// configured. The JSON contract at the end is what the emotion extraction in
// internal/analysis/emotion parses.
const defaultSystemPrompt = `You are A SEED, a gentle emotional-support companion. You listen first, ` +
	`validate feelings without judging, and answer in the user's language. Keep replies short and warm; ` +
	`ask at most one question at a time.

Always answer with a single JSON object and nothing else:
{"reply": "<your reply to the user>", "emotion": "<one of: joy, sadness, anger, fear, disgust, surprise, neutral>"}
The emotion field describes the feeling your reply conveys.`

// escalationNote is appended to the system prompt when the trend analyzer
// flags sustained negative affect.
const escalationNote = `The user has shown a sustained negative mood for %d consecutive days ` +
	`(mostly %s). Shift from comfort to gentle behavioural intervention: suggest small concrete ` +
	`actions such as rest, a short walk, writing things down, or reaching out to someone they trust.`

func loadBasePrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[ai] cannot read system prompt %q, using built-in: %v", path, err)
		return defaultSystemPrompt
	}
	return strings.TrimSpace(string(data))
}

// BuildSystemPrompt assembles the final system prompt: base persona, then the
// trend note when escalation is on, then the retrieved memory block.
func BuildSystemPrompt(base string, grounding []string, report trendanalysis.Report) string {
	var b strings.Builder
	b.WriteString(base)

	if report.Escalate {
		b.WriteString("\n\n[Mood trend]\n")
		fmt.Fprintf(&b, escalationNote, report.NegativeStreakDays, report.DominantEmotion)
	}

	if len(grounding) > 0 {
		b.WriteString("\n\n[Relevant context from earlier conversations]\n")
		for _, snippet := range grounding {
			b.WriteString("- ")
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}

	return b.String()
}
