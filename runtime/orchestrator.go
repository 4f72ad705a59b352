package runtime

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/outbound"
	"chat-sync/presence"
	"chat-sync/typing"
)

// Options groups the orchestrator tunables loaded from configuration.
type Options struct {
	BufferSize     int
	SweepInterval  time.Duration
	SinkTimeout    time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Sanitize, when set, rewrites inbound message text before it reaches
	// the engine (moderation hook).
	Sanitize func(string) string
}

// Orchestrator wires the sync session together: it seeds the engine from
// the snapshot, then applies channel events, local commands, and timer
// sweeps strictly one at a time on a single dispatch goroutine. That serial
// discipline is what makes every engine transition atomic per event.
type Orchestrator struct {
	log        *slog.Logger
	self       domain.Participant
	engine     *Engine
	presence   *presence.Tracker
	typing     *typing.Indicator
	pipeline   *outbound.Pipeline
	channel    contract.IChannel
	loader     contract.ISnapshotLoader
	supervisor contract.ISupervisor
	stats      *observability.SyncStats
	sinks      []contract.EventSink
	commands   chan domain.Command
	fatal      chan error
	opts       Options
}

func NewOrchestrator(
	log *slog.Logger,
	self domain.Participant,
	engine *Engine,
	presenceTracker *presence.Tracker,
	typingIndicator *typing.Indicator,
	pipeline *outbound.Pipeline,
	liveChannel contract.IChannel,
	loader contract.ISnapshotLoader,
	supervisor contract.ISupervisor,
	stats *observability.SyncStats,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		log:        log,
		self:       self,
		engine:     engine,
		presence:   presenceTracker,
		typing:     typingIndicator,
		pipeline:   pipeline,
		channel:    liveChannel,
		loader:     loader,
		supervisor: supervisor,
		stats:      stats,
		commands:   make(chan domain.Command, opts.BufferSize),
		fatal:      make(chan error, 1),
		opts:       opts,
	}
}

// AddSinks registers consumers fanned out after every applied event.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.sinks = append(o.sinks, sinks...)
}

// Dispatch queues a local command without blocking the caller. A full
// queue drops the command; the optimistic state never goes half-applied.
func (o *Orchestrator) Dispatch(cmd domain.Command) {
	select {
	case o.commands <- cmd:
	default:
		o.log.Warn("command queue full, dropping command", "conversation", cmd.ConversationID())
	}
}

// Start performs the initial snapshot seed and then runs the channel and
// the dispatch loop under supervision until the context is canceled.
// An AuthError is fatal and surfaces to the caller; transient snapshot
// failures are retried with backoff.
func (o *Orchestrator) Start(ctx context.Context) error {
	snapshot, err := o.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	o.engine.Seed(snapshot)
	o.stats.SetConversations(len(snapshot))
	o.log.Info("initial snapshot seeded", "conversations", len(snapshot))

	o.supervisor.Add(o.channel, dispatchWorker{o: o})
	o.supervisor.Run(ctx)

	// A fatal mid-session failure (rejected credentials on resync) tears the
	// workers down; surface it so the caller can re-authenticate.
	select {
	case err := <-o.fatal:
		return err
	default:
		return nil
	}
}

// Stop tears the session down: workers cancel, timers die with the
// supervised context, and ephemeral state is cleared.
func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
	o.typing.Reset()
}

// fail records the first fatal error and tears the session down. Start
// picks the error up once the supervisor unwinds.
func (o *Orchestrator) fail(err error) {
	select {
	case o.fatal <- err:
	default:
	}
	o.Stop()
}

// dispatchWorker adapts the dispatch loop to the supervised Worker shape.
type dispatchWorker struct {
	o *Orchestrator
}

func (w dispatchWorker) Run(ctx context.Context) error {
	return w.o.dispatch(ctx)
}

func (o *Orchestrator) dispatch(ctx context.Context) error {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-o.channel.Events():
			if !ok {
				return nil
			}
			o.applyEvent(ctx, evt)
		case cmd := <-o.commands:
			o.applyCommand(ctx, cmd)
		case now := <-ticker.C:
			o.sweep(ctx, now)
		}
	}
}

func (o *Orchestrator) applyEvent(ctx context.Context, evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessageReceived:
		if o.opts.Sanitize != nil && e.Text != "" {
			e.Text = o.opts.Sanitize(e.Text)
		}
		o.pipeline.Confirm(e.CorrelationID)
		applied := o.engine.ApplyMessage(e)
		o.typing.MessageArrived(e.Conversation, e.Sender.ID)
		o.stats.IncrEventsApplied()
		if applied {
			o.fanout(ctx, e)
		}

	case event.PresenceChanged:
		o.presence.Apply(e)
		o.stats.IncrEventsApplied()
		o.fanout(ctx, e)

	case event.TypingObserved:
		o.typing.Observe(e, time.Now())
		o.stats.IncrEventsApplied()

	case event.Resynced:
		o.stats.IncrResyncs()
		o.resync(ctx)
		o.fanout(ctx, e)

	default:
		o.log.Warn("unhandled event kind", "kind", evt.Kind())
	}
}

func (o *Orchestrator) applyCommand(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.SendMessageCommand:
		msg, wire := o.pipeline.Prepare(c, time.Now())
		o.engine.AddPending(msg)
		o.stats.IncrMessagesSent()
		if err := o.channel.SendMessage(ctx, wire); err != nil {
			// The entry stays Pending; the sweep turns it Failed if no
			// echo arrives before the send timeout.
			o.log.Warn("send emit failed", "conversation", c.Conversation, "error", err)
		}

	case domain.NotifyTypingCommand:
		if err := o.channel.NotifyTyping(ctx, c.Conversation, o.self.ID, o.self.Name); err != nil {
			o.log.Debug("typing emit failed", "conversation", c.Conversation, "error", err)
		}

	case domain.JoinConversationCommand:
		if err := o.channel.JoinConversation(ctx, c.Conversation); err != nil {
			o.log.Warn("join emit failed", "conversation", c.Conversation, "error", err)
		}
	}
}

func (o *Orchestrator) sweep(ctx context.Context, now time.Time) {
	for _, sig := range o.typing.Expire(now) {
		o.log.Debug("typing signal expired", "conversation", sig.Conversation, "user", sig.UserID)
	}
	for _, failed := range o.pipeline.Sweep(now) {
		o.engine.MarkFailed(failed.Conversation, failed.CorrelationID)
		o.stats.IncrSendTimeouts()
		o.fanout(ctx, failed)
	}
	o.stats.SetPending(o.engine.PendingCount())
}

// resync replaces the state with a fresh snapshot after a reconnect.
// Pending local sends survive the replacement inside Engine.Seed.
func (o *Orchestrator) resync(ctx context.Context) {
	snapshot, err := o.loadSnapshot(ctx)
	if err != nil {
		if goerrors.Is(err, errors.ErrAuth) {
			o.log.Error("resync rejected, tearing session down", "error", err)
			o.fail(err)
			return
		}
		o.log.Warn("resync fetch abandoned", "error", err)
		return
	}
	o.engine.Seed(snapshot)
	o.stats.SetConversations(len(snapshot))
	o.log.Info("resynced from snapshot", "conversations", len(snapshot))
}

// loadSnapshot retries transient failures with exponential backoff and a
// ceiling. AuthError aborts immediately: only re-authentication can fix it.
func (o *Orchestrator) loadSnapshot(ctx context.Context) ([]*domain.Conversation, error) {
	delay := o.opts.RetryBaseDelay
	for {
		snapshot, err := o.loader.Load(ctx, o.self.ID)
		if err == nil {
			return snapshot, nil
		}
		if goerrors.Is(err, errors.ErrAuth) {
			return nil, err
		}

		o.log.Warn("snapshot fetch failed, retrying", "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > o.opts.RetryMaxDelay {
			delay = o.opts.RetryMaxDelay
		}
	}
}

func (o *Orchestrator) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range o.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, o.opts.SinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			o.log.Warn("sink rejected event", "kind", evt.Kind(), "error", err)
		}
		cancel()
	}
}
