package model

import "time"

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnKind distinguishes ordinary replies from the fixed turns the engine
// appends on its own (refusals and failure notices).
type TurnKind string

const (
	KindMessage TurnKind = "message"
	KindRefusal TurnKind = "refusal"
	KindError   TurnKind = "error"
)

// ChatTurn is one message in a user's transcript.
//
// Index is the turn's position in the transcript (0-based) and is what the
// download routes address. Turns are immutable once appended.
type ChatTurn struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Kind      TurnKind  `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsError reports whether the turn is a failure notice rather than content.
func (t *ChatTurn) IsError() bool {
	return t.Kind == KindError
}
