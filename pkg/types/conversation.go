package types

import "time"

// ConversationTurn is one entry in a session's chat history. Turns form an
// ordered, append-only sequence consumed by follow-up detection and by the
// generative call's history parameter.
type ConversationTurn struct {
	Text      string
	IsUser    bool
	Timestamp time.Time
}

// UserTurn builds a user-authored turn stamped with the current time.
func UserTurn(text string) ConversationTurn {
	return ConversationTurn{Text: text, IsUser: true, Timestamp: time.Now()}
}

// AssistantTurn builds an assistant-authored turn stamped with the current time.
func AssistantTurn(text string) ConversationTurn {
	return ConversationTurn{Text: text, IsUser: false, Timestamp: time.Now()}
}
