// Package domain contains core concepts of the conversation sync engine.
// This file defines Message values and their delivery lifecycle.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationID string

type UserID string

// DeliveryState is the confirmation lifecycle of a message.
// A locally originated message starts Pending, becomes Confirmed when the
// server echo carrying its correlation id arrives, or Failed when the send
// timeout elapses first.
type DeliveryState int

const (
	Pending DeliveryState = iota
	Confirmed
	Failed
)

func (s DeliveryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Message is a single chat entry. ID is the server-assigned identity and is
// only meaningful once Confirmed. CorrelationID is set on locally originated
// messages and links the optimistic entry to its server echo.
type Message struct {
	ID            uuid.UUID
	Conversation  ConversationID
	SenderID      UserID
	Text          string
	Image         []byte
	SentAt        time.Time // server timestamp, zero until confirmed
	LocalAt       time.Time // local arrival time
	CorrelationID string
	State         DeliveryState

	// arrival is the per-conversation insertion counter used to break
	// timestamp ties deterministically.
	arrival uint64
}

// EffectiveTime is the ordering and activity key: the server timestamp once
// assigned, the local arrival time before that.
func (m Message) EffectiveTime() time.Time {
	if !m.SentAt.IsZero() {
		return m.SentAt
	}
	return m.LocalAt
}

// HasImage reports whether the message carries an opaque image payload.
func (m Message) HasImage() bool {
	return len(m.Image) > 0
}
