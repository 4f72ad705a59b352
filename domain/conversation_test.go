package domain_test

import (
	"testing"
	"time"

	"chat-sync/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func confirmedMessage(text string, at time.Time) domain.Message {
	return domain.Message{
		ID:       uuid.New(),
		SenderID: "alice",
		Text:     text,
		SentAt:   at,
		State:    domain.Confirmed,
	}
}

func Test_Conversation_keeps_confirmed_messages_in_timestamp_order(t *testing.T) {
	// Arrange
	conv := domain.NewConversation("room-1")

	// Act: deliver out of order
	conv.Append(confirmedMessage("second", baseTime.Add(2*time.Minute)))
	conv.Append(confirmedMessage("first", baseTime.Add(1*time.Minute)))
	conv.Append(confirmedMessage("third", baseTime.Add(3*time.Minute)))

	// Assert
	messages := conv.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)
	assert.Equal(t, "third", messages[2].Text)
}

func Test_Conversation_refuses_duplicate_server_ids(t *testing.T) {
	conv := domain.NewConversation("room-1")
	msg := confirmedMessage("hello", baseTime)

	require.True(t, conv.Append(msg))
	assert.False(t, conv.Append(msg), "same server id must be a no-op")
	assert.Equal(t, 1, conv.Len())
}

func Test_Conversation_refuses_duplicate_correlation_ids(t *testing.T) {
	conv := domain.NewConversation("room-1")
	pending := domain.Message{
		SenderID:      "me",
		Text:          "optimistic",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	}

	require.True(t, conv.Append(pending))
	assert.False(t, conv.Append(pending))
	assert.Equal(t, 1, conv.Len())
}

func Test_Pending_messages_trail_confirmed_ones(t *testing.T) {
	conv := domain.NewConversation("room-1")

	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "still in flight",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})
	// A confirmed message arriving later still sorts before the pending one.
	conv.Append(confirmedMessage("from the server", baseTime.Add(time.Hour)))

	messages := conv.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "from the server", messages[0].Text)
	assert.Equal(t, "still in flight", messages[1].Text)
}

func Test_Confirm_replaces_the_pending_entry_in_place(t *testing.T) {
	conv := domain.NewConversation("room-1")
	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "optimistic",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})

	serverCopy := confirmedMessage("optimistic", baseTime.Add(time.Second))
	require.True(t, conv.Confirm("corr-1", serverCopy))

	messages := conv.Messages()
	require.Len(t, messages, 1, "confirmation must not duplicate the message")
	assert.Equal(t, domain.Confirmed, messages[0].State)
	assert.Equal(t, serverCopy.ID, messages[0].ID)
	assert.Equal(t, "corr-1", messages[0].CorrelationID)
}

func Test_Confirm_reorders_by_server_timestamp(t *testing.T) {
	conv := domain.NewConversation("room-1")

	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "mine",
		LocalAt:       baseTime.Add(10 * time.Second),
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})
	conv.Append(confirmedMessage("theirs", baseTime.Add(20*time.Second)))

	// The server stamped our message before theirs.
	mine := confirmedMessage("mine", baseTime.Add(5*time.Second))
	require.True(t, conv.Confirm("corr-1", mine))

	messages := conv.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "mine", messages[0].Text)
	assert.Equal(t, "theirs", messages[1].Text)
}

func Test_Confirm_treats_a_duplicate_echo_as_a_noop(t *testing.T) {
	conv := domain.NewConversation("room-1")
	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "optimistic",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})

	serverCopy := confirmedMessage("optimistic", baseTime.Add(time.Second))
	require.True(t, conv.Confirm("corr-1", serverCopy))

	// The server redelivers the same echo.
	assert.False(t, conv.Confirm("corr-1", serverCopy), "already confirmed, must report no change")

	messages := conv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, domain.Confirmed, messages[0].State)
	assert.Equal(t, serverCopy.ID, messages[0].ID)
}

func Test_Confirm_upgrades_a_failed_entry_on_a_late_echo(t *testing.T) {
	conv := domain.NewConversation("room-1")
	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "slow",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})
	require.True(t, conv.MarkFailed("corr-1"))

	// The echo arrives after the send timeout: the message did reach the server.
	late := confirmedMessage("slow", baseTime.Add(time.Minute))
	require.True(t, conv.Confirm("corr-1", late))

	messages := conv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, domain.Confirmed, messages[0].State)
}

func Test_MarkFailed_only_downgrades_pending_entries(t *testing.T) {
	conv := domain.NewConversation("room-1")
	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "doomed",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})

	require.True(t, conv.MarkFailed("corr-1"))
	assert.False(t, conv.MarkFailed("corr-1"), "already Failed, not Pending anymore")

	messages := conv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, domain.Failed, messages[0].State)

	// A confirmed entry is never downgraded.
	msg := confirmedMessage("safe", baseTime)
	msg.CorrelationID = "corr-2"
	conv.Append(msg)
	assert.False(t, conv.MarkFailed("corr-2"))
}

func Test_LastActivity_tracks_the_newest_effective_time(t *testing.T) {
	conv := domain.NewConversation("room-1")
	assert.True(t, conv.LastActivity().IsZero())

	conv.Append(confirmedMessage("old", baseTime))
	conv.Append(confirmedMessage("new", baseTime.Add(time.Hour)))

	assert.Equal(t, baseTime.Add(time.Hour), conv.LastActivity())
}

func Test_PendingMessages_returns_only_unconfirmed_entries(t *testing.T) {
	conv := domain.NewConversation("room-1")
	conv.Append(confirmedMessage("done", baseTime))
	conv.Append(domain.Message{
		SenderID:      "me",
		Text:          "waiting",
		LocalAt:       baseTime,
		CorrelationID: "corr-1",
		State:         domain.Pending,
	})

	pending := conv.PendingMessages()
	require.Len(t, pending, 1)
	assert.Equal(t, "waiting", pending[0].Text)
}
