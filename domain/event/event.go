// Package event defines the typed inbound events multiplexed over the live
// channel, plus the lifecycle events the engine fans out to sinks.
package event

import (
	"time"

	"chat-sync/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Kind() string
}

// MessageReceived is the server push for a new or echoed message. Sender
// carries enough identity to synthesize a conversation the client has never
// seen (first message of a fresh chat).
type MessageReceived struct {
	Conversation  domain.ConversationID
	MessageID     uuid.UUID
	Sender        domain.Participant
	Text          string
	Image         []byte
	SentAt        time.Time
	CorrelationID string
}

func (MessageReceived) Kind() string { return "message_received" }

// PresenceChanged carries a full or partial presence map. Later events win
// per user id; the channel guarantees in-order delivery per connection.
type PresenceChanged struct {
	Entries map[domain.UserID]domain.PresenceEntry
}

func (PresenceChanged) Kind() string { return "presence_changed" }

type TypingObserved struct {
	Conversation domain.ConversationID
	UserID       domain.UserID
	UserName     string
}

func (TypingObserved) Kind() string { return "typing_observed" }

// Resynced is emitted by the channel after it re-enters Connected following
// a drop. Events missed during the outage are not replayed; the engine must
// re-seed from a fresh snapshot instead.
type Resynced struct {
	At time.Time
}

func (Resynced) Kind() string { return "resynced" }

// MessageFailed is fanned out when a local send exhausts its confirmation
// timeout. The entry stays visible as Failed for a retry affordance.
type MessageFailed struct {
	Conversation  domain.ConversationID
	CorrelationID string
}

func (MessageFailed) Kind() string { return "message_failed" }
