//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-sync/domain"
	"chat-sync/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IChannel is the live event channel: one shared connection per session,
// a typed inbound stream, and the outbound operations. The channel owns
// reconnect and backoff; consumers only see events.
type IChannel interface {
	Run(ctx context.Context) error
	Events() <-chan event.DomainEvent
	JoinConversation(ctx context.Context, id domain.ConversationID) error
	SendMessage(ctx context.Context, msg domain.OutboundMessage) error
	NotifyTyping(ctx context.Context, id domain.ConversationID, user domain.UserID, name string) error
}

// ISnapshotLoader fetches the authoritative conversation list with full
// message history for a user. Implementations must exhaust pagination.
type ISnapshotLoader interface {
	Load(ctx context.Context, user domain.UserID) ([]*domain.Conversation, error)
}
