// Package runtime handles event application, fan-out, and session
// orchestration. It merges the three sources of truth (snapshot, live
// events, local sends) without containing transport or UI logic.
package runtime

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"

	"github.com/samber/lo"
)

// Engine owns the canonical conversation state. Every mutation happens on
// the dispatch goroutine, one event at a time; the mutex only shields the
// read-side accessors used by the rendering collaborator.
type Engine struct {
	mu   sync.RWMutex
	log  *slog.Logger
	self domain.Participant

	conversations map[domain.ConversationID]*domain.Conversation
}

func NewEngine(log *slog.Logger, self domain.Participant) *Engine {
	return &Engine{
		log:           log,
		self:          self,
		conversations: make(map[domain.ConversationID]*domain.Conversation),
	}
}

// Seed replaces the whole state with a fresh snapshot, carrying over any
// still-Pending local message the snapshot does not reflect. A pending
// message only disappears through confirmation or its own send timeout,
// never through a resync.
func (e *Engine) Seed(snapshot []*domain.Conversation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orphans := make(map[domain.ConversationID][]domain.Message)
	for id, conv := range e.conversations {
		if pending := conv.PendingMessages(); len(pending) > 0 {
			orphans[id] = pending
		}
	}

	next := make(map[domain.ConversationID]*domain.Conversation, len(snapshot))
	for _, conv := range snapshot {
		next[conv.ID] = conv
	}

	for id, pending := range orphans {
		conv, ok := next[id]
		if !ok {
			// The conversation itself is gone from the snapshot: keep the
			// optimistic shell alive until the sends resolve.
			conv = domain.NewConversation(id, e.self)
			next[id] = conv
		}
		for _, m := range pending {
			if !conv.HasCorrelation(m.CorrelationID) {
				conv.Append(m)
			}
		}
	}

	e.conversations = next
	e.log.Debug("snapshot seeded", "conversations", len(next), "pendingCarried", len(orphans))
}

// ApplyMessage merges one MessageReceived push. Unknown conversations are
// synthesized from the sender info plus the current user. An echo carrying
// a known correlation id confirms the Pending entry in place; anything else
// is appended in timestamp order. Duplicate deliveries are no-ops.
func (e *Engine) ApplyMessage(evt event.MessageReceived) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	conv, ok := e.conversations[evt.Conversation]
	if !ok {
		conv = domain.NewConversation(evt.Conversation, e.self, evt.Sender)
		e.conversations[evt.Conversation] = conv
	}

	msg := domain.Message{
		ID:            evt.MessageID,
		Conversation:  evt.Conversation,
		SenderID:      evt.Sender.ID,
		Text:          evt.Text,
		Image:         evt.Image,
		SentAt:        evt.SentAt,
		LocalAt:       time.Now(),
		CorrelationID: evt.CorrelationID,
		State:         domain.Confirmed,
	}

	if evt.CorrelationID != "" && conv.HasCorrelation(evt.CorrelationID) {
		return conv.Confirm(evt.CorrelationID, msg)
	}
	return conv.Append(msg)
}

// AddPending registers an optimistic local message for immediate display.
func (e *Engine) AddPending(msg domain.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	conv, ok := e.conversations[msg.Conversation]
	if !ok {
		conv = domain.NewConversation(msg.Conversation, e.self)
		e.conversations[msg.Conversation] = conv
	}
	msg.State = domain.Pending
	return conv.Append(msg)
}

// MarkFailed flips a Pending entry to Failed after its send timeout.
func (e *Engine) MarkFailed(id domain.ConversationID, correlationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	conv, ok := e.conversations[id]
	if !ok {
		return false
	}
	return conv.MarkFailed(correlationID)
}

// Conversations returns the list ordered descending by last activity.
// Conversations with no messages sort after all the others. Every entry is
// a detached copy: the dispatch goroutine keeps mutating the canonical
// state, so live pointers must never leave the lock.
func (e *Engine) Conversations() []*domain.Conversation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := lo.Map(lo.Values(e.conversations), func(conv *domain.Conversation, _ int) *domain.Conversation {
		return conv.Clone()
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastActivity(), out[j].LastActivity()
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
	return out
}

// Timeline returns the ordered messages of one conversation.
func (e *Engine) Timeline(id domain.ConversationID) []domain.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()

	conv, ok := e.conversations[id]
	if !ok {
		return nil
	}
	return conv.Messages()
}

// PendingCount counts unconfirmed local messages across conversations.
func (e *Engine) PendingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	count := 0
	for _, conv := range e.conversations {
		count += len(conv.PendingMessages())
	}
	return count
}
