package snapshot_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/snapshot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageBody(conversations string, nextCursor string) string {
	if nextCursor != "" {
		return fmt.Sprintf(`{"conversations": [%s], "nextCursor": %q}`, conversations, nextCursor)
	}
	return fmt.Sprintf(`{"conversations": [%s]}`, conversations)
}

func conversationBody(id string, messageTexts ...string) string {
	messages := ""
	for i, text := range messageTexts {
		if i > 0 {
			messages += ","
		}
		messages += fmt.Sprintf(`{
			"id": %q,
			"senderId": "alice",
			"text": %q,
			"timestamp": "2025-06-01T12:0%d:00Z"
		}`, uuid.NewString(), text, i)
	}
	return fmt.Sprintf(`{
		"id": %q,
		"participants": [
			{"id": "me", "name": "Me"},
			{"id": "alice", "name": "Alice", "avatar": "a.png"}
		],
		"messages": [%s]
	}`, id, messages)
}

func Test_Load_follows_pagination_until_exhausted(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/me", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		switch cursor {
		case "":
			fmt.Fprint(w, pageBody(conversationBody("room-1", "hello"), "page-2"))
		case "page-2":
			fmt.Fprint(w, pageBody(conversationBody("room-2", "hi", "again"), ""))
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	loader := snapshot.NewLoader(slog.Default(), server.URL, "token-123", server.Client())

	conversations, err := loader.Load(context.Background(), "me")
	require.NoError(t, err)

	require.Len(t, conversations, 2)
	assert.Equal(t, []string{"", "page-2"}, cursors)

	assert.Equal(t, domain.ConversationID("room-1"), conversations[0].ID)
	assert.Equal(t, 1, conversations[0].Len())
	assert.Equal(t, domain.ConversationID("room-2"), conversations[1].ID)
	assert.Equal(t, 2, conversations[1].Len())

	first := conversations[0].Messages()[0]
	assert.Equal(t, domain.Confirmed, first.State)
	assert.Equal(t, domain.UserID("alice"), first.SenderID)
	require.Len(t, conversations[0].Participants, 2)
	assert.Equal(t, "a.png", conversations[0].Participants[1].Avatar)
}

func Test_Load_maps_401_and_403_to_auth_errors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		loader := snapshot.NewLoader(slog.Default(), server.URL, "expired", server.Client())
		_, err := loader.Load(context.Background(), "me")
		require.ErrorIs(t, err, errors.ErrAuth, "status %d", status)

		server.Close()
	}
}

func Test_Load_maps_server_errors_to_transient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := snapshot.NewLoader(slog.Default(), server.URL, "token", server.Client())
	_, err := loader.Load(context.Background(), "me")
	require.ErrorIs(t, err, errors.ErrTransientNetwork)
}

func Test_Load_maps_unreachable_backend_to_transient(t *testing.T) {
	loader := snapshot.NewLoader(slog.Default(), "http://127.0.0.1:1", "token", nil)

	_, err := loader.Load(context.Background(), "me")
	require.ErrorIs(t, err, errors.ErrTransientNetwork)
}

func Test_Load_maps_undecodable_pages_to_transient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"conversations": "this is not a list"`)
	}))
	defer server.Close()

	loader := snapshot.NewLoader(slog.Default(), server.URL, "token", server.Client())
	_, err := loader.Load(context.Background(), "me")
	require.ErrorIs(t, err, errors.ErrTransientNetwork)
}
