package domain

import "time"

// TypingSignal is an ephemeral marker that a user is typing in a
// conversation. Newer signals for the same (conversation, user) pair
// overwrite older ones; the signal vanishes once ExpiresAt elapses or the
// user's next message arrives.
type TypingSignal struct {
	Conversation ConversationID
	UserID       UserID
	UserName     string
	ExpiresAt    time.Time
}
