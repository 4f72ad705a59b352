// Package channel maintains the single persistent connection of a session.
// It multiplexes the inbound push events into a typed stream, exposes the
// outbound operations, and owns reconnection with exponential backoff.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// State is the connection lifecycle:
// Disconnected → Connecting → Connected → Disconnected (on drop)
// → Reconnecting → Connected.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "disconnected"
}

// Conn is the minimal surface the channel needs from a websocket
// connection. The indirection keeps dialing swappable in tests.
type Conn interface {
	ReadRaw(ctx context.Context) ([]byte, error)
	WriteJSON(ctx context.Context, v any) error
	Close() error
}

type DialFunc func(ctx context.Context) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadRaw(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c wsConn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

func (c wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session teardown")
}

// WebsocketDialer dials the channel endpoint with the session token as a
// bearer header.
func WebsocketDialer(url, token string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
		}
		conn.SetReadLimit(16 << 20) // image payloads travel inline
		return wsConn{conn: conn}, nil
	}
}

type LiveChannel struct {
	log       *slog.Logger
	dial      DialFunc
	decoder   decoder
	baseDelay time.Duration
	maxDelay  time.Duration

	events chan event.DomainEvent
	state  atomic.Int32

	mu     sync.Mutex
	conn   Conn
	joined map[domain.ConversationID]struct{}
}

func NewLiveChannel(log *slog.Logger, dial DialFunc, baseDelay, maxDelay time.Duration, bufferSize int) *LiveChannel {
	return &LiveChannel{
		log:       log,
		dial:      dial,
		decoder:   newDecoder(),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		events:    make(chan event.DomainEvent, bufferSize),
		joined:    make(map[domain.ConversationID]struct{}),
	}
}

func (c *LiveChannel) Events() <-chan event.DomainEvent {
	return c.events
}

func (c *LiveChannel) State() State {
	return State(c.state.Load())
}

// Run drives the connection lifecycle until the context is canceled.
// After any reconnect it emits a Resynced event so the engine re-seeds from
// a fresh snapshot: events missed during the outage are never replayed.
func (c *LiveChannel) Run(ctx context.Context) error {
	defer c.state.Store(int32(Disconnected))

	attempt := 0
	everConnected := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		if everConnected {
			c.state.Store(int32(Reconnecting))
		} else {
			c.state.Store(int32(Connecting))
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := c.backoff(attempt)
			attempt++
			c.log.Warn("channel dial failed, backing off", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setConn(conn)
		c.state.Store(int32(Connected))
		c.log.Info("channel connected", "resumed", everConnected)

		if everConnected {
			select {
			case c.events <- event.Resynced{At: time.Now()}:
			case <-ctx.Done():
				c.teardown()
				return nil
			}
		}
		everConnected = true

		c.rejoin(ctx)

		if err := c.readLoop(ctx, conn); err != nil && ctx.Err() == nil {
			c.log.Warn("channel connection dropped", "error", err)
		}
		c.teardown()
		c.state.Store(int32(Disconnected))

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *LiveChannel) readLoop(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.ReadRaw(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrChannelClosed, err)
		}

		evt, err := c.decoder.decode(raw)
		if err != nil {
			// A single bad event must never take the channel down.
			c.log.Warn("discarding channel event", "error", err)
			continue
		}

		select {
		case c.events <- evt:
		case <-ctx.Done():
			return nil
		}
	}
}

// JoinConversation subscribes to a conversation's event scope. Joining the
// same conversation twice has no additional effect; the joined set is also
// replayed after every reconnect.
func (c *LiveChannel) JoinConversation(ctx context.Context, id domain.ConversationID) error {
	c.mu.Lock()
	if _, ok := c.joined[id]; ok {
		c.mu.Unlock()
		return nil
	}
	c.joined[id] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		// Not connected yet: the rejoin pass after connect covers it.
		return nil
	}
	return c.write(ctx, conn, frameFor(eventJoinRoom, joinFrame{ChatID: string(id)}))
}

func (c *LiveChannel) SendMessage(ctx context.Context, msg domain.OutboundMessage) error {
	conn := c.current()
	if conn == nil {
		return errors.ErrChannelClosed
	}
	return c.write(ctx, conn, frameFor(eventSendMessage, outboundMessageFrame{
		ChatID:        string(msg.Conversation),
		SenderID:      string(msg.SenderID),
		SenderName:    msg.SenderName,
		Text:          msg.Text,
		Image:         msg.Image,
		CorrelationID: msg.CorrelationID,
	}))
}

func (c *LiveChannel) NotifyTyping(ctx context.Context, id domain.ConversationID, user domain.UserID, name string) error {
	conn := c.current()
	if conn == nil {
		return errors.ErrChannelClosed
	}
	return c.write(ctx, conn, frameFor(eventTyping, typingFrame{
		ChatID:   string(id),
		UserID:   string(user),
		UserName: name,
	}))
}

func (c *LiveChannel) rejoin(ctx context.Context) {
	c.mu.Lock()
	ids := make([]domain.ConversationID, 0, len(c.joined))
	for id := range c.joined {
		ids = append(ids, id)
	}
	conn := c.conn
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.write(ctx, conn, frameFor(eventJoinRoom, joinFrame{ChatID: string(id)})); err != nil {
			c.log.Warn("rejoin failed", "conversation", id, "error", err)
			return
		}
	}
}

func (c *LiveChannel) write(ctx context.Context, conn Conn, v any) error {
	if err := conn.WriteJSON(ctx, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransientNetwork, err)
	}
	return nil
}

func (c *LiveChannel) backoff(attempt int) time.Duration {
	delay := c.baseDelay << attempt
	if delay > c.maxDelay || delay <= 0 {
		return c.maxDelay
	}
	return delay
}

func (c *LiveChannel) setConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *LiveChannel) current() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *LiveChannel) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

type wireFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func frameFor(name string, data any) wireFrame {
	return wireFrame{Event: name, Data: data}
}
