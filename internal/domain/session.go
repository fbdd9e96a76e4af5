package domain

import "time"

// Role tags the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a conversation history. Turns are never
// modified after being appended; order is chronological, oldest first.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the per-user conversation state.
type Session struct {
	UserID        string    `json:"userId"`
	History       []Turn    `json:"history,omitempty"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
	AwaitingHuman bool      `json:"awaitingHuman,omitempty"`
}

// Seeded reports whether the history starts with a system turn.
func (s Session) Seeded() bool {
	return len(s.History) > 0 && s.History[0].Role == RoleSystem
}
