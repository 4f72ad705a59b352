//go:generate go run go.uber.org/mock/mockgen -source=message_cache.go -destination=../mocks/mock_message_cache.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageCache interface {
	StoreMessage(message CachedMessage) error
	GetMessages(conversation domain.ConversationID, cursor *string) ([]CachedMessage, *string, error)
}

// MessageCache persists confirmed messages locally so a cold start can
// render instantly while the authoritative snapshot loads. It is a cache,
// never a source of truth: snapshot seeding always wins.
type MessageCache struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageCache(db *badger.DB, log *slog.Logger, limitMessages *int) MessageCache {
	return MessageCache{db: db, log: log, limitMessages: limitMessages}
}

type CachedMessage struct {
	ID           uuid.UUID `cbor:"id"`
	Conversation string    `cbor:"conversation"`
	SenderID     string    `cbor:"senderId"`
	SenderName   string    `cbor:"senderName"`
	Text         string    `cbor:"text,omitempty"`
	HasImage     bool      `cbor:"hasImage,omitempty"`
	At           time.Time `cbor:"at"`
}

// StoreMessage persists one confirmed message.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (c MessageCache) StoreMessage(message CachedMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.Conversation,
		message.At.UnixNano(),
		message.ID,
	)
	bytes, err := cbor.Marshal(message)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages retrieves cached messages for one conversation with a
// reverse prefix scan: most recent first, paginated through the opaque
// cursor, capped by limitMessages per page.
func (c MessageCache) GetMessages(conversation domain.ConversationID, cursor *string) ([]CachedMessage, *string, error) {
	var rawMessages [][]byte
	var lastKey string

	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversation)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if c.limitMessages != nil && len(rawMessages) == *c.limitMessages {
				c.log.Debug(fmt.Sprintf("Maximum of %d cached messages reached", *c.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]CachedMessage, 0, len(rawMessages))
	for _, raw := range rawMessages {
		var message CachedMessage
		if err := cbor.Unmarshal(raw, &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}
