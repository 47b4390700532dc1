package sink

import (
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	"sync"

	"github.com/google/uuid"
)

// ConnectionSink is the outbound queue of one live connection.
// Producers enqueue without waiting for the transport; the connection's own
// writer goroutine drains Events in order.
type ConnectionSink struct {
	id     string
	Events chan event.DomainEvent
	closed chan struct{}
	once   sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		id:     uuid.NewString(),
		Events: make(chan event.DomainEvent, bufferSize),
		closed: make(chan struct{}),
	}
}

func (s *ConnectionSink) ID() string { return s.id }

// Consume enqueues e. A full buffer drops the event and reports backpressure.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrBackpressure
	}
}

// Close stops accepting events. Events already queued stay readable.
func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.closed
}

// Len is the number of events waiting for the writer.
// Reading len and cap of a channel never blocks its producers or consumer.
func (s *ConnectionSink) Len() int { return len(s.Events) }

func (s *ConnectionSink) Cap() int { return cap(s.Events) }
