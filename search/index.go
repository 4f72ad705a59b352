// Package search maintains the in-memory full-text index backing the chat
// list search box: sender names and message bodies.
package search

import (
	"context"
	"log/slog"
	"sync"

	"chat-sync/domain"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
)

type Hit struct {
	MessageID    string
	Conversation domain.ConversationID
	Sender       string
	Text         string
	Lang         string
	Score        float64
}

type Index struct {
	mu     sync.Mutex
	log    *slog.Logger
	writer *bluge.Writer
}

func NewInMemoryIndex(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{log: log, writer: writer}, nil
}

// IndexMessage adds or refreshes one confirmed message. The detected
// language is stored alongside so the viewer can group results.
func (i *Index) IndexMessage(conversation domain.ConversationID, messageID, sender, text string) error {
	if text == "" {
		return nil
	}

	lang := whatlanggo.LangToString(whatlanggo.Detect(text).Lang)

	doc := bluge.NewDocument(messageID).
		AddField(bluge.NewKeywordField("conversation", string(conversation)).StoreValue()).
		AddField(bluge.NewTextField("sender", sender).StoreValue()).
		AddField(bluge.NewTextField("text", text).StoreValue()).
		AddField(bluge.NewKeywordField("lang", lang).StoreValue())

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search matches the query against sender names and message bodies and
// returns the best hits, most relevant first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	i.mu.Lock()
	reader, err := i.writer.Reader()
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(query).SetField("text")).
		AddShould(bluge.NewMatchQuery(query).SetField("sender"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			return hits, nil
		}

		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation":
				hit.Conversation = domain.ConversationID(value)
			case "sender":
				hit.Sender = string(value)
			case "text":
				hit.Text = string(value)
			case "lang":
				hit.Lang = string(value)
			}
			return true
		})
		if err != nil {
			i.log.Warn("skipping unreadable search hit", "error", err)
			continue
		}
		hits = append(hits, hit)
	}
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
