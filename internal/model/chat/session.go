package chat

import "time"

// Session captures one conversation owned by a single user. Sessions are never
// hard-deleted; starting a new chat simply creates a fresh session, which is
// what lets memory retrieval reach back across old conversations.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}
