// Package typing holds the ephemeral "who is typing" state machine.
// Each (conversation, user) pair is Idle or Typing; a typing event
// (re)schedules the expiry, and a confirmed message from the typist or the
// deadline itself forces the pair back to Idle.
package typing

import (
	"sort"
	"sync"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
)

type key struct {
	conversation domain.ConversationID
	user         domain.UserID
}

type Indicator struct {
	mu      sync.RWMutex
	ttl     time.Duration
	signals map[key]domain.TypingSignal
}

func NewIndicator(ttl time.Duration) *Indicator {
	return &Indicator{
		ttl:     ttl,
		signals: make(map[key]domain.TypingSignal),
	}
}

// Observe moves the pair to Typing and pushes its expiry out by one TTL.
// The explicit now makes expiry testable with simulated time.
func (i *Indicator) Observe(evt event.TypingObserved, now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	k := key{conversation: evt.Conversation, user: evt.UserID}
	i.signals[k] = domain.TypingSignal{
		Conversation: evt.Conversation,
		UserID:       evt.UserID,
		UserName:     evt.UserName,
		ExpiresAt:    now.Add(i.ttl),
	}
}

// MessageArrived clears the pair: a delivered message supersedes the
// typing hint from its sender.
func (i *Indicator) MessageArrived(conversation domain.ConversationID, user domain.UserID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.signals, key{conversation: conversation, user: user})
}

// Expire sweeps out every signal whose deadline elapsed and returns them.
func (i *Indicator) Expire(now time.Time) []domain.TypingSignal {
	i.mu.Lock()
	defer i.mu.Unlock()

	var expired []domain.TypingSignal
	for k, sig := range i.signals {
		if !sig.ExpiresAt.After(now) {
			expired = append(expired, sig)
			delete(i.signals, k)
		}
	}
	return expired
}

// Typists returns the set of users currently typing in a conversation,
// sorted by name for stable rendering. Concurrent typists are independent
// entries, never a single scalar.
func (i *Indicator) Typists(conversation domain.ConversationID, now time.Time) []domain.TypingSignal {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var active []domain.TypingSignal
	for k, sig := range i.signals {
		if k.conversation == conversation && sig.ExpiresAt.After(now) {
			active = append(active, sig)
		}
	}
	sort.Slice(active, func(a, b int) bool {
		return active[a].UserName < active[b].UserName
	})
	return active
}

// Reset drops every signal. Used on session teardown.
func (i *Indicator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.signals = make(map[key]domain.TypingSignal)
}
