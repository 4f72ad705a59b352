// Package snapshot fetches the authoritative conversation state over the
// REST backend. The loader exhausts pagination before returning so the
// engine always seeds from a complete view.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Loader struct {
	log        *slog.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewLoader(log *slog.Logger, baseURL, token string, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Loader{
		log:        log,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type participantPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type messagePayload struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	Text          string    `json:"text,omitempty"`
	Image         []byte    `json:"image,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

type conversationPayload struct {
	ID           string               `json:"id"`
	Participants []participantPayload `json:"participants"`
	Messages     []messagePayload     `json:"messages"`
}

type chatsPage struct {
	Conversations []conversationPayload `json:"conversations"`
	NextCursor    string                `json:"nextCursor,omitempty"`
}

// Load fetches the full conversation list for a user, following nextCursor
// until the backend reports no further page. A 401/403 is fatal for the
// session; everything else network-shaped is transient and retryable by the
// caller.
func (l *Loader) Load(ctx context.Context, user domain.UserID) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	cursor := ""

	for {
		page, err := l.fetchPage(ctx, user, cursor)
		if err != nil {
			return nil, err
		}
		for _, payload := range page.Conversations {
			conversations = append(conversations, toConversation(payload))
		}
		if page.NextCursor == "" {
			return conversations, nil
		}
		cursor = page.NextCursor
	}
}

func (l *Loader) fetchPage(ctx context.Context, user domain.UserID, cursor string) (*chatsPage, error) {
	endpoint := fmt.Sprintf("%s/api/chats/%s", l.baseURL, url.PathEscape(string(user)))
	if cursor != "" {
		endpoint += "?cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: snapshot fetch returned %d", errors.ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: snapshot fetch returned %d", errors.ErrTransientNetwork, resp.StatusCode)
	}

	var page chatsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot page: %v", errors.ErrTransientNetwork, err)
	}
	l.log.Debug("snapshot page fetched", "conversations", len(page.Conversations), "hasNext", page.NextCursor != "")
	return &page, nil
}

func toConversation(payload conversationPayload) *domain.Conversation {
	participants := lo.Map(payload.Participants, func(p participantPayload, _ int) domain.Participant {
		return domain.Participant{ID: domain.UserID(p.ID), Name: p.Name, Avatar: p.Avatar}
	})

	conv := domain.NewConversation(domain.ConversationID(payload.ID), participants...)
	for _, m := range payload.Messages {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			id = uuid.Nil
		}
		conv.Append(domain.Message{
			ID:            id,
			Conversation:  conv.ID,
			SenderID:      domain.UserID(m.SenderID),
			Text:          m.Text,
			Image:         m.Image,
			SentAt:        m.Timestamp,
			LocalAt:       m.Timestamp,
			CorrelationID: m.CorrelationID,
			State:         domain.Confirmed,
		})
	}
	return conv
}
