package sink_test

import (
	"context"
	"log/slog"
	"testing"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/search"
	"chat-sync/sink"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_IndexSink_indexes_received_messages(t *testing.T) {
	index, err := search.NewInMemoryIndex(slog.Default())
	require.NoError(t, err)
	defer func() { _ = index.Close() }()

	s := sink.NewIndexSink(index, slog.Default())

	id := uuid.New()
	require.NoError(t, s.Consume(context.Background(), event.MessageReceived{
		Conversation: "room-1",
		MessageID:    id,
		Sender:       domain.Participant{ID: "alice", Name: "Alice"},
		Text:         "searchable content",
		SentAt:       t0,
	}))
	require.NoError(t, s.Consume(context.Background(), event.Resynced{At: t0}))

	hits, err := index.Search(context.Background(), "searchable", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id.String(), hits[0].MessageID)
}
