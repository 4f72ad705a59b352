// Package outbound turns local send intents into optimistic Pending
// messages and tracks them until the server echo confirms them or the
// bounded timeout marks them Failed.
package outbound

import (
	"log/slog"
	"sync"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"

	"github.com/google/uuid"
)

type inflight struct {
	conversation domain.ConversationID
	deadline     time.Time
}

type Pipeline struct {
	mu      sync.Mutex
	log     *slog.Logger
	self    domain.Participant
	timeout time.Duration
	pending map[string]inflight
}

func NewPipeline(log *slog.Logger, self domain.Participant, timeout time.Duration) *Pipeline {
	return &Pipeline{
		log:     log,
		self:    self,
		timeout: timeout,
		pending: make(map[string]inflight),
	}
}

// Prepare assigns a correlation id to a send intent and returns both the
// Pending entry for immediate display and the wire-bound message. The image
// payload passes through opaque; the pipeline never inspects it.
func (p *Pipeline) Prepare(cmd domain.SendMessageCommand, now time.Time) (domain.Message, domain.OutboundMessage) {
	correlationID := uuid.NewString()

	p.mu.Lock()
	p.pending[correlationID] = inflight{
		conversation: cmd.Conversation,
		deadline:     now.Add(p.timeout),
	}
	p.mu.Unlock()

	msg := domain.Message{
		Conversation:  cmd.Conversation,
		SenderID:      p.self.ID,
		Text:          cmd.Text,
		Image:         cmd.Image,
		LocalAt:       now,
		CorrelationID: correlationID,
		State:         domain.Pending,
	}
	wire := domain.OutboundMessage{
		Conversation:  cmd.Conversation,
		SenderID:      p.self.ID,
		SenderName:    p.self.Name,
		Text:          cmd.Text,
		Image:         cmd.Image,
		CorrelationID: correlationID,
	}
	return msg, wire
}

// Confirm resolves an in-flight send. Returns false for correlation ids the
// pipeline does not own (echoes of other devices, duplicates).
func (p *Pipeline) Confirm(correlationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[correlationID]; !ok {
		return false
	}
	delete(p.pending, correlationID)
	return true
}

// Sweep expires every send whose confirmation window elapsed. Each expired
// entry becomes a MessageFailed for the engine and the sinks; the channel
// itself stays up, a slow send is not a connection problem.
func (p *Pipeline) Sweep(now time.Time) []event.MessageFailed {
	p.mu.Lock()
	defer p.mu.Unlock()

	var failed []event.MessageFailed
	for id, entry := range p.pending {
		if !entry.deadline.After(now) {
			failed = append(failed, event.MessageFailed{
				Conversation:  entry.conversation,
				CorrelationID: id,
			})
			delete(p.pending, id)
			p.log.Warn("send confirmation timed out", "conversation", entry.conversation, "correlationId", id)
		}
	}
	return failed
}

// InFlight counts sends still awaiting confirmation.
func (p *Pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
