package runtime_test

import (
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/mocks"
	"chat-presence/runtime"
	"chat-presence/sink"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	dispatcherFixture
	presence *mocks.MockPresenceStore
	sessions *runtime.SessionManager
}

func newSessionFixture(t *testing.T) sessionFixture {
	f := newDispatcherFixture(t)
	presence := mocks.NewMockPresenceStore(gomock.NewController(t))
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return sessionFixture{
		dispatcherFixture: f,
		presence:          presence,
		sessions:          runtime.NewSessionManager(log, f.registry, presence, f.dispatcher),
	}
}

func TestSessionManager_Connect_Runs_Steps_In_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	alice := sink.NewConnectionSink(10)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	pending := newMessage("alice", "bob", chat.StatusDelivered)

	// Given bob has a pending message from alice
	gomock.InOrder(
		f.presence.EXPECT().SetOnline(gomock.Any(), chat.UserID("bob"), true, gomock.Any()).Return(nil),
		f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), chat.StatusDelivered).
			Return([]chat.Message{pending}, nil),
	)

	// When bob connects
	f.sessions.Connect(ctx, "bob", bob)

	// Then bob is reachable and alice learns the delivery before the presence change
	conn, ok := f.registry.Lookup("bob")
	req.True(ok)
	req.Equal(bob.ID(), conn.ID())
	req.Equal([]event.DomainEvent{
		event.MessageDelivered{MessageID: pending.ID, ReceiverID: "bob"},
		event.UserOnline{UserID: "bob"},
	}, drain(alice))
	req.Empty(drain(bob))
}

func TestSessionManager_Connect_Survives_Persistence_Failures(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	alice := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)

	// Given the store is down
	f.presence.EXPECT().SetOnline(gomock.Any(), chat.UserID("bob"), true, gomock.Any()).Return(stderrors.New("down"))
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, stderrors.New("down"))

	// When bob connects
	f.sessions.Connect(ctx, "bob", sink.NewConnectionSink(10))

	// Then bob is still online and announced
	_, ok := f.registry.Lookup("bob")
	req.True(ok)
	req.Equal([]event.DomainEvent{event.UserOnline{UserID: "bob"}}, drain(alice))
}

func TestSessionManager_Disconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	alice := sink.NewConnectionSink(10)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	f.registry.Register("bob", bob)

	f.presence.EXPECT().SetOnline(gomock.Any(), chat.UserID("bob"), false, gomock.Any()).Return(nil)

	// When bob disconnects
	f.sessions.Disconnect(ctx, "bob", bob)

	// Then he is gone and alice is told
	_, ok := f.registry.Lookup("bob")
	req.False(ok)
	req.Equal([]event.DomainEvent{event.UserOffline{UserID: "bob"}}, drain(alice))
}

func TestSessionManager_Disconnect_Superseded_Connection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	alice := sink.NewConnectionSink(10)
	oldBob := sink.NewConnectionSink(10)
	newBob := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	f.registry.Register("bob", oldBob)
	f.registry.Register("bob", newBob)

	// Then nothing is persisted (no SetOnline expectation)

	// When the superseded connection closes
	f.sessions.Disconnect(ctx, "bob", oldBob)

	// Then bob stays online and nobody is told otherwise
	conn, ok := f.registry.Lookup("bob")
	req.True(ok)
	req.Equal(newBob.ID(), conn.ID())
	req.Empty(drain(alice))
}
