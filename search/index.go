// Package search keeps a full-text index of message contents.
package search

import (
	"chat-presence/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	fieldID         = "_id"
	fieldContent    = "content"
	fieldSender     = "sender_id"
	fieldReceiver   = "receiver_id"
	fieldCreatedAt  = "created_at"
	defaultMaxLimit = 100
)

// Hit is a message matching a search query.
type Hit struct {
	MessageID  uuid.UUID
	SenderID   chat.UserID
	ReceiverID chat.UserID
	Content    string
	CreatedAt  time.Time
	Score      float64
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

func toDocument(m chat.Message) *bluge.Document {
	return bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewTextField(fieldContent, m.Content).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, string(m.SenderID)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldReceiver, string(m.ReceiverID)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldCreatedAt, m.CreatedAt.UTC().Format(time.RFC3339Nano)).StoreValue())
}

// Index adds or replaces messages in a single batch.
func (i *Index) Index(messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, m := range messages {
		doc := toDocument(m)
		batch.Update(doc.ID(), doc)
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("index batch of %d messages: %w", len(messages), err)
	}
	return nil
}

// Search returns the best matches for text among the conversations participant takes part in.
//
// Steps:
//  1. Open a point-in-time reader, so concurrent batches do not shift results.
//  2. Require a content match AND the participant on either side.
//  3. Rebuild each hit from its stored fields; a document that fails to
//     decode is skipped and logged rather than failing the whole search.
//  4. Re-check participation on the decoded hits before returning.
func (i *Index) Search(ctx context.Context, participant chat.UserID, text string, limit int) ([]Hit, error) {
	if limit <= 0 || limit > defaultMaxLimit {
		limit = defaultMaxLimit
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	// Keyword fields are not analysed, so identities match exactly
	participantQuery := bluge.NewBooleanQuery().
		AddShould(
			bluge.NewTermQuery(string(participant)).SetField(fieldSender),
			bluge.NewTermQuery(string(participant)).SetField(fieldReceiver),
		).
		SetMinShould(1)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(text).SetField(fieldContent), participantQuery)

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	var hits []Hit
	match, err := matches.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				hit.MessageID, visitErr = uuid.ParseBytes(value)
			case fieldContent:
				hit.Content = string(value)
			case fieldSender:
				hit.SenderID = chat.UserID(value)
			case fieldReceiver:
				hit.ReceiverID = chat.UserID(value)
			case fieldCreatedAt:
				hit.CreatedAt, visitErr = time.Parse(time.RFC3339Nano, string(value))
			}
			return visitErr == nil
		})
		if err != nil {
			return nil, err
		}
		if visitErr != nil {
			i.log.Warn("skipping corrupted index document", "error", visitErr)
		} else {
			hits = append(hits, hit)
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return lo.Filter(hits, func(h Hit, _ int) bool {
		return h.SenderID == participant || h.ReceiverID == participant
	}), nil
}
