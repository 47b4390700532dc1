package workers

import (
	"chat-presence/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	mu      sync.Mutex
	batches [][]chat.Message
	fail    bool
}

func (r *recordingIndex) Index(messages ...chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("index unavailable")
	}
	r.batches = append(r.batches, append([]chat.Message(nil), messages...))
	return nil
}

func (r *recordingIndex) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestIndexer_Flushes_On_Batch_Size(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	index := &recordingIndex{}
	indexer := NewIndexer(log, index, 10, 2, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = indexer.Run(ctx) }()

	// When two messages are created
	indexer.MessageCreated(chat.Message{ID: uuid.New()})
	indexer.MessageCreated(chat.Message{ID: uuid.New()})

	// Then they are indexed together without waiting for the ticker
	req.Eventually(func() bool { return index.count() == 2 }, time.Second, 5*time.Millisecond)
	index.mu.Lock()
	req.Len(index.batches, 1)
	index.mu.Unlock()
}

func TestIndexer_Flushes_On_Tick_And_Shutdown(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	index := &recordingIndex{}
	indexer := NewIndexer(log, index, 10, 100, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- indexer.Run(ctx) }()

	indexer.MessageCreated(chat.Message{ID: uuid.New()})
	req.Eventually(func() bool { return index.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

func TestIndexer_Never_Blocks_The_Sender(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	indexer := NewIndexer(log, &recordingIndex{}, 1, 10, time.Hour)

	// Given nobody runs the indexer, extra messages are dropped
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			indexer.MessageCreated(chat.Message{ID: uuid.New()})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		req.Fail("MessageCreated blocked")
	}
	req.Len(indexer.messages, 1)
}

func TestIndexer_Failure_Ends_Run(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	indexer := NewIndexer(log, &recordingIndex{fail: true}, 10, 1, time.Hour)

	// When the index rejects a batch, Run returns so the supervisor restarts it
	indexer.MessageCreated(chat.Message{ID: uuid.New()})
	req.Error(indexer.Run(context.Background()))
}

func TestIndexer_Restart_Retries_The_Failed_Batch(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	index := &recordingIndex{fail: true}
	indexer := NewIndexer(log, index, 10, 1, 10*time.Millisecond)
	message := chat.Message{ID: uuid.New()}

	// Given the first run failed to flush a message
	indexer.MessageCreated(message)
	req.Error(indexer.Run(context.Background()))

	// When the index recovers and the supervisor restarts the worker
	index.mu.Lock()
	index.fail = false
	index.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- indexer.Run(ctx) }()

	// Then the message is indexed without being enqueued again
	req.Eventually(func() bool { return index.count() == 1 }, time.Second, 5*time.Millisecond)
	index.mu.Lock()
	req.Equal(message.ID, index.batches[0][0].ID)
	index.mu.Unlock()
	cancel()
	req.NoError(<-done)
}
