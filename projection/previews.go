// Package projection builds read-side views for the rendering collaborator.
// It only reads canonical state; it never mutates it or emits events.
package projection

import (
	"fmt"
	"time"

	"chat-sync/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

// ConversationPreview is one row of the chat list.
type ConversationPreview struct {
	ID           domain.ConversationID
	Friend       domain.Participant
	Preview      string
	LastActivity time.Time
	Unconfirmed  bool
	StatusText   string
}

// BuildPreviews maps the engine's ordered conversations to chat list rows.
// The presence lookup decorates each row with the friend's status line.
func BuildPreviews(self domain.UserID, conversations []*domain.Conversation, lookup func(domain.UserID) domain.PresenceEntry) []ConversationPreview {
	return lo.Map(conversations, func(conv *domain.Conversation, _ int) ConversationPreview {
		preview := ConversationPreview{
			ID:           conv.ID,
			Friend:       friendOf(self, conv),
			LastActivity: conv.LastActivity(),
		}

		if last, ok := conv.LastMessage(); ok {
			preview.Preview = previewText(self, last)
			preview.Unconfirmed = last.State != domain.Confirmed
		} else {
			preview.Preview = "No messages yet"
		}

		if lookup != nil {
			preview.StatusText = statusText(lookup(preview.Friend.ID))
		}
		return preview
	})
}

func friendOf(self domain.UserID, conv *domain.Conversation) domain.Participant {
	friend, ok := lo.Find(conv.Participants, func(p domain.Participant) bool {
		return p.ID != self
	})
	if !ok && len(conv.Participants) > 0 {
		return conv.Participants[0]
	}
	return friend
}

// previewText renders the last message line: own messages are prefixed
// with "You:", image payloads get a detected type label instead of bytes.
func previewText(self domain.UserID, last domain.Message) string {
	var text string
	switch {
	case last.Text != "":
		text = last.Text
	case last.HasImage():
		text = fmt.Sprintf("Image (%s)", mimetype.Detect(last.Image).String())
	}

	if last.SenderID == self {
		return "You: " + text
	}
	return text
}

func statusText(entry domain.PresenceEntry) string {
	if entry.State == domain.Online {
		return "Online"
	}
	if entry.LastSeen.IsZero() {
		return "Offline"
	}
	return "Last seen: " + entry.LastSeen.Format("15:04:05")
}
