// Package services exposes the operations the rendering collaborator
// calls. Writes go through the orchestrator's command queue; reads come
// straight from the owning components.
package services

import (
	"context"
	"time"

	"chat-sync/domain"
	"chat-sync/presence"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/search"
	"chat-sync/typing"
)

type ISyncService interface {
	SendMessage(conversation domain.ConversationID, text string, image []byte)
	NotifyTyping(conversation domain.ConversationID)
	JoinConversation(conversation domain.ConversationID)
	Conversations() []projection.ConversationPreview
	Timeline(conversation domain.ConversationID) []domain.Message
	PresenceOf(user domain.UserID) domain.PresenceEntry
	TypistsIn(conversation domain.ConversationID) []domain.TypingSignal
	Search(ctx context.Context, query string, limit int) ([]search.Hit, error)
}

type SyncService struct {
	self         domain.Participant
	orchestrator *runtime.Orchestrator
	engine       *runtime.Engine
	presence     *presence.Tracker
	typing       *typing.Indicator
	index        *search.Index
}

func NewSyncService(
	self domain.Participant,
	orchestrator *runtime.Orchestrator,
	engine *runtime.Engine,
	presenceTracker *presence.Tracker,
	typingIndicator *typing.Indicator,
	index *search.Index,
) *SyncService {
	return &SyncService{
		self:         self,
		orchestrator: orchestrator,
		engine:       engine,
		presence:     presenceTracker,
		typing:       typingIndicator,
		index:        index,
	}
}

func (s *SyncService) SendMessage(conversation domain.ConversationID, text string, image []byte) {
	s.orchestrator.Dispatch(domain.SendMessageCommand{
		Conversation: conversation,
		Text:         text,
		Image:        image,
	})
}

func (s *SyncService) NotifyTyping(conversation domain.ConversationID) {
	s.orchestrator.Dispatch(domain.NotifyTypingCommand{Conversation: conversation})
}

func (s *SyncService) JoinConversation(conversation domain.ConversationID) {
	s.orchestrator.Dispatch(domain.JoinConversationCommand{Conversation: conversation})
}

func (s *SyncService) Conversations() []projection.ConversationPreview {
	return projection.BuildPreviews(s.self.ID, s.engine.Conversations(), s.presence.Lookup)
}

func (s *SyncService) Timeline(conversation domain.ConversationID) []domain.Message {
	return s.engine.Timeline(conversation)
}

func (s *SyncService) PresenceOf(user domain.UserID) domain.PresenceEntry {
	return s.presence.Lookup(user)
}

func (s *SyncService) TypistsIn(conversation domain.ConversationID) []domain.TypingSignal {
	return s.typing.Typists(conversation, time.Now())
}

func (s *SyncService) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	return s.index.Search(ctx, query, limit)
}
