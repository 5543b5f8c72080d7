package emotion

import (
	"encoding/json"
	"strings"
)

// Label is the closed set of emotions the model may tag a reply with.
type Label string

const (
	Joy      Label = "joy"
	Sadness  Label = "sadness"
	Anger    Label = "anger"
	Fear     Label = "fear"
	Disgust  Label = "disgust"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
)

// Labels lists every valid label.
func Labels() []Label {
	return []Label{Joy, Sadness, Anger, Fear, Disgust, Surprise, Neutral}
}

// Parse normalizes a raw emotion string into a Label. Anything outside the
// closed set reports ok=false.
func Parse(raw string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(raw))) {
	case Joy:
		return Joy, true
	case Sadness:
		return Sadness, true
	case Anger:
		return Anger, true
	case Fear:
		return Fear, true
	case Disgust:
		return Disgust, true
	case Surprise:
		return Surprise, true
	case Neutral:
		return Neutral, true
	default:
		return Neutral, false
	}
}

// Negative reports whether the label counts toward a negative mood day.
func (l Label) Negative() bool {
	switch l {
	case Sadness, Fear, Anger, Disgust:
		return true
	default:
		return false
	}
}

type replyPayload struct {
	Reply   string `json:"reply"`
	Emotion string `json:"emotion"`
}

// ExtractReply pulls {reply, emotion} out of the model's raw output. The model
// is asked for a JSON object but is not trusted to produce one: a missing or
// malformed object falls back to the raw text with a neutral label, and an
// out-of-set emotion becomes neutral. Classification can never block the reply.
func ExtractReply(raw string) (string, Label) {
	reply := strings.TrimSpace(raw)

	obj, ok := firstJSONObject(raw)
	if !ok {
		return reply, Neutral
	}

	var payload replyPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return reply, Neutral
	}

	if text := strings.TrimSpace(payload.Reply); text != "" {
		reply = text
	}

	label, _ := Parse(payload.Emotion)
	return reply, label
}

// firstJSONObject returns the widest {...} span in the text, tolerating models
// that wrap the object in prose or code fences.
func firstJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}
