package sink

import (
	"context"
	"log/slog"

	"chat-sync/domain/event"
	"chat-sync/search"
)

// IndexSink feeds confirmed inbound messages into the search index.
type IndexSink struct {
	index *search.Index
	log   *slog.Logger
}

func NewIndexSink(index *search.Index, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	return s.index.IndexMessage(evt.Conversation, evt.MessageID.String(), evt.Sender.Name, evt.Text)
}
