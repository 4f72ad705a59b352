// Package presence tracks online/last-seen state per user.
// Entries are created on first observation, updated in place, and only
// cleared on full session teardown.
package presence

import (
	"sync"

	"chat-sync/domain"
	"chat-sync/domain/event"
)

type Tracker struct {
	mu      sync.RWMutex
	entries map[domain.UserID]domain.PresenceEntry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[domain.UserID]domain.PresenceEntry)}
}

// Apply folds one PresenceChanged event in. Last write wins per user id;
// the channel delivers in order per connection so arrival order is enough,
// no timestamp comparison needed.
func (t *Tracker) Apply(evt event.PresenceChanged) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, entry := range evt.Entries {
		entry.UserID = id
		t.entries[id] = entry
	}
}

// Lookup returns the last observed state of a user. Users never observed
// default to Offline with an unknown (zero) last-seen time.
func (t *Tracker) Lookup(id domain.UserID) domain.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if entry, ok := t.entries[id]; ok {
		return entry
	}
	return domain.PresenceEntry{UserID: id, State: domain.Offline}
}

// Known returns the number of users observed so far.
func (t *Tracker) Known() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
