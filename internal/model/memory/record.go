package memory

import "time"

// Record is a persisted embedding of a turn, scoped to the owning user rather
// than a single session so retrieval can draw on any of the user's past
// conversations. Records are derived from the turn log and never mutated.
type Record struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	TurnID    int64     `json:"turnId"`
	Embedding []float32 `json:"-"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"createdAt"`
}

// Hit is one similarity-search result.
type Hit struct {
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	SessionID string  `json:"sessionId"`
	TurnID    int64   `json:"turnId"`
}
