package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Conversation owns its message sequence by value. Identity is immutable
// once created. Messages are kept sorted under the total order below:
//   - Confirmed messages by server timestamp, ties by insertion order;
//   - Pending and Failed messages always trail Confirmed ones, ordered
//     between themselves by insertion order.
type Conversation struct {
	ID           ConversationID
	Participants []Participant

	messages []Message
	nextSeq  uint64
}

func NewConversation(id ConversationID, participants ...Participant) *Conversation {
	return &Conversation{
		ID:           id,
		Participants: participants,
	}
}

// Append inserts a message and re-establishes ordering. It refuses
// duplicates: a message whose server ID or correlation id is already present
// leaves the conversation untouched and returns false.
func (c *Conversation) Append(m Message) bool {
	if c.contains(m) {
		return false
	}
	c.insert(m)
	return true
}

// Confirm replaces the Pending entry carrying the given correlation id with
// the server-confirmed message, in place, then re-sorts. Returns false when
// no entry with that correlation id exists or it is already Confirmed, so a
// duplicate echo is a no-op. A Failed entry still upgrades: a late echo
// means the send did reach the server.
func (c *Conversation) Confirm(correlationID string, confirmed Message) bool {
	idx := c.indexOfCorrelation(correlationID)
	if idx < 0 || c.messages[idx].State == Confirmed {
		return false
	}
	confirmed.State = Confirmed
	confirmed.CorrelationID = correlationID
	confirmed.arrival = c.messages[idx].arrival
	if confirmed.LocalAt.IsZero() {
		confirmed.LocalAt = c.messages[idx].LocalAt
	}
	c.messages[idx] = confirmed
	c.sortMessages()
	return true
}

// MarkFailed flips the Pending entry with the given correlation id to
// Failed. Confirmed entries are never downgraded.
func (c *Conversation) MarkFailed(correlationID string) bool {
	idx := c.indexOfCorrelation(correlationID)
	if idx < 0 || c.messages[idx].State != Pending {
		return false
	}
	c.messages[idx].State = Failed
	return true
}

// HasCorrelation reports whether any message carries the correlation id.
func (c *Conversation) HasCorrelation(correlationID string) bool {
	return c.indexOfCorrelation(correlationID) >= 0
}

// PendingMessages returns the still-unconfirmed local messages. Used during
// resync to carry optimistic entries over a snapshot replacement.
func (c *Conversation) PendingMessages() []Message {
	var pending []Message
	for _, m := range c.messages {
		if m.State == Pending {
			pending = append(pending, m)
		}
	}
	return pending
}

// Clone returns a value copy whose message slice is detached from the
// original, safe to hand to readers outside the owning lock.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{
		ID:           c.ID,
		Participants: append([]Participant(nil), c.Participants...),
		messages:     append([]Message(nil), c.messages...),
		nextSeq:      c.nextSeq,
	}
}

// Messages returns a copy of the ordered timeline.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// LastMessage returns the most recent message and false when empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// LastActivity is the conversation list ordering key: the effective time of
// the most recent message, zero when the conversation is empty.
func (c *Conversation) LastActivity() time.Time {
	var last time.Time
	for _, m := range c.messages {
		if t := m.EffectiveTime(); t.After(last) {
			last = t
		}
	}
	return last
}

func (c *Conversation) contains(m Message) bool {
	for _, existing := range c.messages {
		if m.ID != uuid.Nil && existing.ID == m.ID {
			return true
		}
		if m.CorrelationID != "" && existing.CorrelationID == m.CorrelationID {
			return true
		}
	}
	return false
}

func (c *Conversation) indexOfCorrelation(correlationID string) int {
	if correlationID == "" {
		return -1
	}
	for i, m := range c.messages {
		if m.CorrelationID == correlationID {
			return i
		}
	}
	return -1
}

func (c *Conversation) insert(m Message) {
	c.nextSeq++
	m.arrival = c.nextSeq
	if m.LocalAt.IsZero() {
		m.LocalAt = m.EffectiveTime()
	}
	c.messages = append(c.messages, m)
	c.sortMessages()
}

func (c *Conversation) sortMessages() {
	sort.SliceStable(c.messages, func(i, j int) bool {
		a, b := c.messages[i], c.messages[j]
		aTrails := a.State != Confirmed
		bTrails := b.State != Confirmed
		if aTrails != bTrails {
			return bTrails
		}
		if aTrails {
			return a.arrival < b.arrival
		}
		if !a.SentAt.Equal(b.SentAt) {
			return a.SentAt.Before(b.SentAt)
		}
		return a.arrival < b.arrival
	})
}
