package domain

// Command is a locally originated intent routed through the dispatch loop.
type Command interface {
	ConversationID() ConversationID
}

type SendMessageCommand struct {
	Conversation ConversationID
	Text         string
	Image        []byte
}

func (c SendMessageCommand) ConversationID() ConversationID {
	return c.Conversation
}

type NotifyTypingCommand struct {
	Conversation ConversationID
}

func (c NotifyTypingCommand) ConversationID() ConversationID {
	return c.Conversation
}

type JoinConversationCommand struct {
	Conversation ConversationID
}

func (c JoinConversationCommand) ConversationID() ConversationID {
	return c.Conversation
}

// OutboundMessage is the wire-bound shape of a local send, correlation id
// included so the server echo can be reconciled with the Pending entry.
type OutboundMessage struct {
	Conversation  ConversationID
	SenderID      UserID
	SenderName    string
	Text          string
	Image         []byte
	CorrelationID string
}
