package workers

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixedSessions []contract.Session

func (f fixedSessions) Sessions() []contract.Session { return f }

func fill(t *testing.T, conn *sink.ConnectionSink, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, conn.Consume(context.Background(), event.UserTyping{UserID: "x", IsTyping: true}))
	}
}

func TestHealthMonitor_Sample_Flags_Saturated_Connections(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	alice := sink.NewConnectionSink(10)
	bob := sink.NewConnectionSink(10)
	fill(t, alice, 9)
	fill(t, bob, 2)
	monitor := NewHealthMonitor(log, fixedSessions{
		{Identity: "alice", Connection: alice},
		{Identity: "bob", Connection: bob},
	}, time.Hour)

	// When the monitor samples without process stats
	sample := monitor.sample(nil)

	// Then queue depths add up and only alice is close to backpressure
	req.Equal(2, sample.Sessions)
	req.Equal(11, sample.QueuedEvents)
	req.Equal(20, sample.QueueCapacity)
	req.Equal([]chat.UserID{"alice"}, sample.Saturated)
	req.Zero(sample.RSSBytes)
}

func TestHealthMonitor_Run_Reports_To_Handlers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn := sink.NewConnectionSink(4)
	fill(t, conn, 4)
	samples := make(chan HealthSample, 16)
	monitor := NewHealthMonitor(log, fixedSessions{{Identity: "alice", Connection: conn}}, 5*time.Millisecond,
		func(s HealthSample) {
			select {
			case samples <- s:
			default:
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	// Then each tick hands a sample to the handlers
	select {
	case s := <-samples:
		req.Equal(1, s.Sessions)
		req.Equal(4, s.QueuedEvents)
		req.Equal([]chat.UserID{"alice"}, s.Saturated)
		req.False(s.At.IsZero())
	case <-time.After(time.Second):
		req.Fail("no health sample reported")
	}

	// And cancelling stops the monitor cleanly
	cancel()
	req.NoError(<-done)
}
