package runtime_test

import (
	"context"
	goerrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/observability"
	"chat-sync/outbound"
	"chat-sync/presence"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/typing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// scriptedChannel lets a test push events and record outbound traffic
// without any real socket.
type scriptedChannel struct {
	events chan event.DomainEvent

	mu     sync.Mutex
	sent   []domain.OutboundMessage
	joined []domain.ConversationID
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{events: make(chan event.DomainEvent, 16)}
}

func (c *scriptedChannel) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (c *scriptedChannel) Events() <-chan event.DomainEvent { return c.events }

func (c *scriptedChannel) JoinConversation(_ context.Context, id domain.ConversationID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, id)
	return nil
}

func (c *scriptedChannel) SendMessage(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *scriptedChannel) NotifyTyping(context.Context, domain.ConversationID, domain.UserID, string) error {
	return nil
}

func (c *scriptedChannel) sentMessages() []domain.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.OutboundMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// recordingSink captures fanned-out events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind())
	}
	return out
}

type fixture struct {
	engine       *runtime.Engine
	orchestrator *runtime.Orchestrator
	channel      *scriptedChannel
	sink         *recordingSink
	stats        *observability.SyncStats
}

func startSession(t *testing.T, ctx context.Context, loader *mocks.MockISnapshotLoader, sendTimeout time.Duration) fixture {
	t.Helper()
	log := slog.Default()

	f := fixture{
		engine:  runtime.NewEngine(log, self),
		channel: newScriptedChannel(),
		sink:    &recordingSink{},
		stats:   observability.NewSyncStats(),
	}

	orchestrator := runtime.NewOrchestrator(
		log, self, f.engine,
		presence.NewTracker(),
		typing.NewIndicator(time.Second),
		outbound.NewPipeline(log, self, sendTimeout),
		f.channel, loader,
		workers.NewSupervisor(log),
		f.stats,
		runtime.Options{
			BufferSize:     16,
			SweepInterval:  10 * time.Millisecond,
			SinkTimeout:    time.Second,
			RetryBaseDelay: 10 * time.Millisecond,
			RetryMaxDelay:  50 * time.Millisecond,
		},
	)
	orchestrator.AddSinks(f.sink)
	f.orchestrator = orchestrator

	started := make(chan error, 1)
	go func() { started <- orchestrator.Start(ctx) }()
	t.Cleanup(func() {
		orchestrator.Stop()
		select {
		case err := <-started:
			// Canceling the parent context during startup is a normal teardown.
			if err != nil && !goerrors.Is(err, context.Canceled) {
				t.Errorf("orchestrator stopped with error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("orchestrator did not stop")
		}
	})
	return f
}

func snapshotLoader(t *testing.T, conversations ...*domain.Conversation) *mocks.MockISnapshotLoader {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockISnapshotLoader(ctrl)
	loader.EXPECT().
		Load(gomock.Any(), self.ID).
		Return(conversations, nil).
		AnyTimes()
	return loader
}

func Test_Orchestrator_applies_pushed_messages_and_fans_them_out(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := startSession(t, ctx, snapshotLoader(t, domain.NewConversation("room-1", self, friend)), time.Second)

	evt := received("room-1", "hello", t0)
	f.channel.events <- evt
	// Same push twice: the duplicate must not reach the sinks.
	f.channel.events <- evt

	require.Eventually(t, func() bool {
		return len(f.engine.Timeline("room-1")) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		kinds := f.sink.kinds()
		return len(kinds) == 1 && kinds[0] == "message_received"
	}, time.Second, 10*time.Millisecond)
}

func Test_Orchestrator_send_command_goes_optimistic_then_confirms_on_echo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := startSession(t, ctx, snapshotLoader(t, domain.NewConversation("room-1", self, friend)), time.Minute)

	f.orchestrator.Dispatch(domain.SendMessageCommand{Conversation: "room-1", Text: "hi there"})

	var correlationID string
	require.Eventually(t, func() bool {
		sent := f.channel.sentMessages()
		if len(sent) != 1 {
			return false
		}
		correlationID = sent[0].CorrelationID
		return correlationID != ""
	}, time.Second, 10*time.Millisecond)

	timeline := f.engine.Timeline("room-1")
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.Pending, timeline[0].State)

	f.channel.events <- event.MessageReceived{
		Conversation:  "room-1",
		MessageID:     uuid.New(),
		Sender:        self,
		Text:          "hi there",
		SentAt:        t0,
		CorrelationID: correlationID,
	}

	require.Eventually(t, func() bool {
		timeline := f.engine.Timeline("room-1")
		return len(timeline) == 1 && timeline[0].State == domain.Confirmed
	}, time.Second, 10*time.Millisecond)
}

func Test_Orchestrator_marks_unechoed_sends_failed_after_the_timeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Send timeout shorter than the sweep cadence tolerance: the echo never comes.
	f := startSession(t, ctx, snapshotLoader(t, domain.NewConversation("room-1", self, friend)), 20*time.Millisecond)

	f.orchestrator.Dispatch(domain.SendMessageCommand{Conversation: "room-1", Text: "lost"})

	require.Eventually(t, func() bool {
		timeline := f.engine.Timeline("room-1")
		return len(timeline) == 1 && timeline[0].State == domain.Failed
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, kind := range f.sink.kinds() {
			if kind == "message_failed" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, f.stats.GetLatest().SendTimeouts)
}

func Test_Orchestrator_resync_reloads_the_snapshot_but_keeps_pending_sends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	loader := mocks.NewMockISnapshotLoader(ctrl)

	first := domain.NewConversation("room-1", self, friend)
	refreshed := func() *domain.Conversation {
		conv := domain.NewConversation("room-1", self, friend)
		conv.Append(domain.Message{
			ID:       uuid.New(),
			SenderID: friend.ID,
			Text:     "you missed this",
			SentAt:   t0,
			State:    domain.Confirmed,
		})
		return conv
	}
	gomock.InOrder(
		loader.EXPECT().Load(gomock.Any(), self.ID).Return([]*domain.Conversation{first}, nil),
		loader.EXPECT().Load(gomock.Any(), self.ID).DoAndReturn(
			func(context.Context, domain.UserID) ([]*domain.Conversation, error) {
				return []*domain.Conversation{refreshed()}, nil
			}).AnyTimes(),
	)

	f := startSession(t, ctx, loader, time.Minute)

	f.orchestrator.Dispatch(domain.SendMessageCommand{Conversation: "room-1", Text: "in flight"})
	require.Eventually(t, func() bool {
		return len(f.channel.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)

	f.channel.events <- event.Resynced{At: t0}

	require.Eventually(t, func() bool {
		timeline := f.engine.Timeline("room-1")
		return len(timeline) == 2
	}, time.Second, 10*time.Millisecond)

	timeline := f.engine.Timeline("room-1")
	assert.Equal(t, "you missed this", timeline[0].Text)
	assert.Equal(t, "in flight", timeline[1].Text)
	assert.Equal(t, domain.Pending, timeline[1].State)
	assert.EqualValues(t, 1, f.stats.GetLatest().Resyncs)
}

func Test_Orchestrator_start_fails_fast_on_rejected_credentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockISnapshotLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), self.ID).Return(nil, errors.ErrAuth)

	log := slog.Default()
	orchestrator := runtime.NewOrchestrator(
		log, self,
		runtime.NewEngine(log, self),
		presence.NewTracker(),
		typing.NewIndicator(time.Second),
		outbound.NewPipeline(log, self, time.Second),
		newScriptedChannel(), loader,
		workers.NewSupervisor(log),
		observability.NewSyncStats(),
		runtime.Options{BufferSize: 1, SweepInterval: time.Second, SinkTimeout: time.Second,
			RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond},
	)

	err := orchestrator.Start(context.Background())
	require.ErrorIs(t, err, errors.ErrAuth)
}

func Test_Orchestrator_surfaces_rejected_credentials_during_resync(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockISnapshotLoader(ctrl)
	gomock.InOrder(
		loader.EXPECT().Load(gomock.Any(), self.ID).
			Return([]*domain.Conversation{domain.NewConversation("room-1", self, friend)}, nil),
		loader.EXPECT().Load(gomock.Any(), self.ID).Return(nil, errors.ErrAuth),
	)

	log := slog.Default()
	channel := newScriptedChannel()
	orchestrator := runtime.NewOrchestrator(
		log, self,
		runtime.NewEngine(log, self),
		presence.NewTracker(),
		typing.NewIndicator(time.Second),
		outbound.NewPipeline(log, self, time.Second),
		channel, loader,
		workers.NewSupervisor(log),
		observability.NewSyncStats(),
		runtime.Options{BufferSize: 1, SweepInterval: time.Second, SinkTimeout: time.Second,
			RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- orchestrator.Start(ctx) }()

	// The session expired while we were disconnected: the reconnect-triggered
	// snapshot reload gets rejected.
	channel.events <- event.Resynced{At: t0}

	select {
	case err := <-started:
		require.ErrorIs(t, err, errors.ErrAuth, "the caller must learn the session died")
	case <-time.After(2 * time.Second):
		t.Fatal("session kept running after rejected credentials")
	}
}

func Test_Orchestrator_retries_transient_snapshot_failures(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockISnapshotLoader(ctrl)
	gomock.InOrder(
		loader.EXPECT().Load(gomock.Any(), self.ID).Return(nil, errors.ErrTransientNetwork).Times(2),
		loader.EXPECT().Load(gomock.Any(), self.ID).
			Return([]*domain.Conversation{domain.NewConversation("room-1", self, friend)}, nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := startSession(t, ctx, loader, time.Second)

	assert.Eventually(t, func() bool {
		return len(f.engine.Conversations()) == 1 && f.stats.GetLatest().Conversations == 1
	}, time.Second, 10*time.Millisecond)
}
