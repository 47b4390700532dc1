package workers

import (
	"chat-presence/domain/chat"
	"context"
	"log/slog"
	"time"
)

type MessageIndex interface {
	Index(messages ...chat.Message) error
}

// Indexer feeds persisted messages into the search index in batches.
// Enqueueing never blocks the sender: when the buffer is full the message
// is left out of the index.
// The pending batch lives on the worker, so a batch whose flush failed is
// retried by the next run after the supervisor restarts it.
type Indexer struct {
	log           *slog.Logger
	index         MessageIndex
	messages      chan chat.Message
	batchSize     int
	flushInterval time.Duration
	pending       []chat.Message
}

func NewIndexer(log *slog.Logger, index MessageIndex, bufferSize, batchSize int, flushInterval time.Duration) *Indexer {
	return &Indexer{
		log:           log,
		index:         index,
		messages:      make(chan chat.Message, bufferSize),
		batchSize:     max(batchSize, 1),
		flushInterval: flushInterval,
	}
}

func (w *Indexer) MessageCreated(message chat.Message) {
	select {
	case w.messages <- message:
	default:
		w.log.Debug("Index buffer full, message not indexed", "message_id", message.ID)
	}
}

func (w *Indexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.flush(); err != nil {
				w.log.Error("Final index flush failed", "error", err, "pending", len(w.pending))
			}
			return nil
		case m := <-w.messages:
			w.pending = append(w.pending, m)
			if len(w.pending) >= w.batchSize {
				if err := w.flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
}

// flush indexes the pending batch and only forgets it once indexed.
// Run is the only caller, so pending needs no lock.
func (w *Indexer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.index.Index(w.pending...); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}
