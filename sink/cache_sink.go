// Package sink holds the event consumers fanned out by the orchestrator
// after each applied event.
package sink

import (
	"context"
	"log/slog"

	"chat-sync/domain/event"
	"chat-sync/repositories"
)

// CacheSink persists confirmed inbound messages to the local badger cache.
type CacheSink struct {
	cache repositories.IMessageCache
	log   *slog.Logger
}

func NewCacheSink(cache repositories.IMessageCache, log *slog.Logger) *CacheSink {
	return &CacheSink{cache: cache, log: log}
}

func (s *CacheSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	return s.cache.StoreMessage(repositories.CachedMessage{
		ID:           evt.MessageID,
		Conversation: string(evt.Conversation),
		SenderID:     string(evt.Sender.ID),
		SenderName:   evt.Sender.Name,
		Text:         evt.Text,
		HasImage:     len(evt.Image) > 0,
		At:           evt.SentAt,
	})
}
