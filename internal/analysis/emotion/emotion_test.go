package emotion

import "testing"

func TestExtractReplyWellFormed(t *testing.T) {
	raw := `{"reply": "I'm here with you.", "emotion": "sadness"}`
	reply, label := ExtractReply(raw)
	if reply != "I'm here with you." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if label != Sadness {
		t.Fatalf("expected sadness, got %s", label)
	}
}

func TestExtractReplyWrappedInProse(t *testing.T) {
	raw := "Sure! Here is the result:\n```json\n{\"reply\": \"That sounds exciting!\", \"emotion\": \"joy\"}\n```"
	reply, label := ExtractReply(raw)
	if reply != "That sounds exciting!" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if label != Joy {
		t.Fatalf("expected joy, got %s", label)
	}
}

func TestExtractReplyPlainTextDefaultsNeutral(t *testing.T) {
	reply, label := ExtractReply("just a plain sentence with no json")
	if reply != "just a plain sentence with no json" {
		t.Fatalf("plain text should be kept as the reply, got %q", reply)
	}
	if label != Neutral {
		t.Fatalf("expected neutral fallback, got %s", label)
	}
}

func TestExtractReplyUnknownEmotionDefaultsNeutral(t *testing.T) {
	_, label := ExtractReply(`{"reply": "hi", "emotion": "melancholy"}`)
	if label != Neutral {
		t.Fatalf("out-of-set emotion should default to neutral, got %s", label)
	}
}

func TestExtractReplyEmptyReplyFieldKeepsRaw(t *testing.T) {
	raw := `{"emotion": "anger"}`
	reply, label := ExtractReply(raw)
	if reply != raw {
		t.Fatalf("missing reply field should fall back to raw output, got %q", reply)
	}
	if label != Anger {
		t.Fatalf("expected anger, got %s", label)
	}
}

func TestParseNormalizesCase(t *testing.T) {
	label, ok := Parse("  Fear ")
	if !ok || label != Fear {
		t.Fatalf("expected fear, got %s (ok=%v)", label, ok)
	}
}

func TestNegativeLabels(t *testing.T) {
	for _, l := range []Label{Sadness, Fear, Anger, Disgust} {
		if !l.Negative() {
			t.Fatalf("%s should be negative", l)
		}
	}
	for _, l := range []Label{Joy, Surprise, Neutral} {
		if l.Negative() {
			t.Fatalf("%s should not be negative", l)
		}
	}
}
