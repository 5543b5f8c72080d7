package chat

import "time"

// Role identifies which party authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn persists one message exchanged within a session. TurnID is assigned by
// the store and is strictly increasing, gap-free, within a session. Emotion is
// only ever set on assistant turns.
type Turn struct {
	SessionID string    `json:"sessionId"`
	TurnID    int64     `json:"turnId"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Emotion   string    `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
