package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Wire event names, kept identical to the backend socket protocol.
const (
	eventReceiveMessage = "receive_message"
	eventUpdateOnline   = "update_online"
	eventUserTyping     = "user_typing"
	eventJoinRoom       = "join_room"
	eventSendMessage    = "send_message"
	eventTyping         = "typing"
)

// frame is the envelope every channel message travels in.
type frame struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data" validate:"required"`
}

type messageFrame struct {
	ChatID        string    `json:"chatId" validate:"required"`
	MessageID     string    `json:"messageId"`
	SenderID      string    `json:"senderId" validate:"required"`
	SenderName    string    `json:"senderName"`
	SenderAvatar  string    `json:"senderAvatar"`
	Text          string    `json:"text"`
	Image         []byte    `json:"image"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`
	CorrelationID string    `json:"correlationId"`
}

type presenceEntryFrame struct {
	State    string     `json:"state" validate:"required,oneof=online offline"`
	LastSeen *time.Time `json:"lastSeen"`
}

type typingFrame struct {
	ChatID   string `json:"chatId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName"`
}

type outboundMessageFrame struct {
	ChatID        string `json:"chatId"`
	SenderID      string `json:"senderId"`
	SenderName    string `json:"senderName"`
	Text          string `json:"text,omitempty"`
	Image         []byte `json:"image,omitempty"`
	CorrelationID string `json:"correlationId"`
}

type joinFrame struct {
	ChatID string `json:"chatId"`
}

// decoder turns raw channel payloads into typed domain events. A payload
// missing required fields yields ErrMalformedEvent so the caller can drop
// it and keep the loop alive.
type decoder struct {
	validate *validator.Validate
}

func newDecoder() decoder {
	return decoder{validate: validator.New()}
}

func (d decoder) decode(raw []byte) (event.DomainEvent, error) {
	var env frame
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if err := d.validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}

	switch env.Event {
	case eventReceiveMessage:
		return d.decodeMessage(env.Data)
	case eventUpdateOnline:
		return d.decodePresence(env.Data)
	case eventUserTyping:
		return d.decodeTyping(env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

func (d decoder) decodeMessage(data json.RawMessage) (event.DomainEvent, error) {
	var payload messageFrame
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if err := d.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if payload.Text == "" && len(payload.Image) == 0 {
		return nil, fmt.Errorf("%w: message carries neither text nor image", errors.ErrMalformedEvent)
	}

	id, err := uuid.Parse(payload.MessageID)
	if err != nil {
		id = uuid.Nil
	}
	return event.MessageReceived{
		Conversation: domain.ConversationID(payload.ChatID),
		MessageID:    id,
		Sender: domain.Participant{
			ID:     domain.UserID(payload.SenderID),
			Name:   payload.SenderName,
			Avatar: payload.SenderAvatar,
		},
		Text:          payload.Text,
		Image:         payload.Image,
		SentAt:        payload.Timestamp,
		CorrelationID: payload.CorrelationID,
	}, nil
}

func (d decoder) decodePresence(data json.RawMessage) (event.DomainEvent, error) {
	var payload map[string]presenceEntryFrame
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	for id, entry := range payload {
		if err := d.validate.Struct(entry); err != nil {
			return nil, fmt.Errorf("%w: presence entry %s: %v", errors.ErrMalformedEvent, id, err)
		}
	}

	entries := lo.MapEntries(payload, func(id string, entry presenceEntryFrame) (domain.UserID, domain.PresenceEntry) {
		state := domain.Offline
		if entry.State == "online" {
			state = domain.Online
		}
		out := domain.PresenceEntry{UserID: domain.UserID(id), State: state}
		if entry.LastSeen != nil {
			out.LastSeen = *entry.LastSeen
		}
		return domain.UserID(id), out
	})
	return event.PresenceChanged{Entries: entries}, nil
}

func (d decoder) decodeTyping(data json.RawMessage) (event.DomainEvent, error) {
	var payload typingFrame
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if err := d.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	return event.TypingObserved{
		Conversation: domain.ConversationID(payload.ChatID),
		UserID:       domain.UserID(payload.UserID),
		UserName:     payload.UserName,
	}, nil
}
