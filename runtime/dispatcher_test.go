package runtime_test

import (
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/runtime"
	"chat-presence/sink"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type dispatcherFixture struct {
	registry   *runtime.Registry
	messages   *mocks.MockMessageStore
	users      *mocks.MockUserDirectory
	dispatcher *runtime.Dispatcher
}

func newDispatcherFixture(t *testing.T) dispatcherFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	messages := mocks.NewMockMessageStore(ctrl)
	users := mocks.NewMockUserDirectory(ctrl)
	return dispatcherFixture{
		registry:   registry,
		messages:   messages,
		users:      users,
		dispatcher: runtime.NewDispatcher(log, registry, messages, users, 100),
	}
}

func newMessage(sender, receiver chat.UserID, status chat.Status) chat.Message {
	return chat.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    "hello",
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestDispatcher_SendMessage_Receiver_Online_Is_Delivered_Immediately(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("bob", bob)
	stored := newMessage("alice", "bob", chat.StatusSent)
	delivered := stored
	delivered.Status = chat.StatusDelivered

	// Given bob is online
	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	// Then the message is persisted as sent, then flipped once the push is accepted
	gomock.InOrder(
		f.messages.EXPECT().
			CreateMessage(gomock.Any(), chat.UserID("alice"), chat.UserID("bob"), "hello", chat.StatusSent).
			Return(stored, nil),
		f.messages.EXPECT().
			UpdateStatus(gomock.Any(), runtime.DirectTransition(stored).Filter, chat.StatusDelivered).
			Return([]chat.Message{delivered}, nil),
	)

	// When alice sends a message
	receipt, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then bob receives it already delivered
	req.NoError(err)
	req.True(receipt.DeliveredNow)
	req.Equal(chat.StatusDelivered, receipt.Message.Status)
	req.Equal([]event.DomainEvent{event.NewMessage{Message: delivered}}, drain(bob))
}

func TestDispatcher_SendMessage_Receiver_Connecting_During_Create_Gets_The_Push(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	bob := sink.NewConnectionSink(10)
	stored := newMessage("alice", "bob", chat.StatusSent)
	delivered := stored
	delivered.Status = chat.StatusDelivered

	// Given bob is offline when alice starts sending
	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	// And bob registers while the message is being committed
	f.messages.EXPECT().
		CreateMessage(gomock.Any(), chat.UserID("alice"), chat.UserID("bob"), "hello", chat.StatusSent).
		DoAndReturn(func(context.Context, chat.UserID, chat.UserID, string, chat.Status) (chat.Message, error) {
			f.registry.Register("bob", bob)
			return stored, nil
		})
	f.messages.EXPECT().
		UpdateStatus(gomock.Any(), runtime.DirectTransition(stored).Filter, chat.StatusDelivered).
		Return([]chat.Message{delivered}, nil)

	// When the send completes
	receipt, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then the lookup after the commit finds bob and the message is not stranded
	req.NoError(err)
	req.True(receipt.DeliveredNow)
	req.Equal([]event.DomainEvent{event.NewMessage{Message: delivered}}, drain(bob))
}

func TestDispatcher_SendMessage_Closed_Connection_Stays_Sent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("bob", bob)
	bob.Close()
	stored := newMessage("alice", "bob", chat.StatusSent)

	// Given bob is registered but his connection is already closing
	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	f.messages.EXPECT().
		CreateMessage(gomock.Any(), chat.UserID("alice"), chat.UserID("bob"), "hello", chat.StatusSent).
		Return(stored, nil)
	// Then no status change is attempted
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When alice sends a message
	receipt, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then it stays sent for the next backlog flip
	req.NoError(err)
	req.False(receipt.DeliveredNow)
	req.Equal(chat.StatusSent, receipt.Message.Status)
}

func TestDispatcher_SendMessage_Backlog_Flip_Won_The_Race(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("bob", bob)
	stored := newMessage("alice", "bob", chat.StatusSent)
	delivered := stored
	delivered.Status = chat.StatusDelivered

	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	f.messages.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), chat.StatusSent).
		Return(stored, nil)
	// Given bob's backlog flip already moved the message
	f.messages.EXPECT().
		UpdateStatus(gomock.Any(), runtime.DirectTransition(stored).Filter, chat.StatusDelivered).
		Return(nil, nil)
	f.messages.EXPECT().GetMessage(gomock.Any(), stored.ID).Return(delivered, true, nil)

	// When the send completes
	receipt, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then the sender sees the current status without a second delivered ack
	req.NoError(err)
	req.False(receipt.DeliveredNow)
	req.Equal(chat.StatusDelivered, receipt.Message.Status)
}

func TestDispatcher_SendMessage_Receiver_Offline_Stays_Sent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	stored := newMessage("alice", "bob", chat.StatusSent)
	listener := mocks.NewMockMessageListener(gomock.NewController(t))
	f.dispatcher.AddListener(listener)

	// Given bob exists but is offline
	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	f.messages.EXPECT().
		CreateMessage(gomock.Any(), chat.UserID("alice"), chat.UserID("bob"), "hello", chat.StatusSent).
		Return(stored, nil)
	// Then listeners still see the persisted message
	listener.EXPECT().MessageCreated(stored)

	// When alice sends a message
	receipt, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then it is stored for the backlog, which is not an error
	req.NoError(err)
	req.False(receipt.DeliveredNow)
	req.Equal(chat.StatusSent, receipt.Message.Status)
}

func TestDispatcher_SendMessage_Validation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)

	// When the content is blank, nothing is looked up or persisted
	_, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "   "})
	req.ErrorIs(err, errors.ErrEmptyContent)

	// When the receiver is unknown
	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("ghost")).Return(false, nil)
	_, err = f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "ghost", Content: "hi"})
	req.ErrorIs(err, errors.ErrUnknownUser)
	req.True(errors.IsValidation(err))
}

func TestDispatcher_SendMessage_Persistence_Failure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("bob", bob)

	f.users.EXPECT().Exists(gomock.Any(), chat.UserID("bob")).Return(true, nil)
	f.messages.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(chat.Message{}, stderrors.New("db closed"))

	// When the store fails
	_, err := f.dispatcher.SendMessage(ctx, chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hello"})

	// Then the failure is a persistence error and nothing is pushed
	req.True(errors.IsPersistence(err))
	req.Empty(drain(bob))
}

func TestDispatcher_SendTyping_Is_Lossy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)

	// When bob is offline the indicator is dropped silently
	req.NoError(f.dispatcher.SendTyping(ctx, chat.TypingCommand{SenderID: "alice", ReceiverID: "bob", IsTyping: true}))

	// When bob is online he receives it, nothing is persisted
	bob := sink.NewConnectionSink(10)
	f.registry.Register("bob", bob)
	req.NoError(f.dispatcher.SendTyping(ctx, chat.TypingCommand{SenderID: "alice", ReceiverID: "bob", IsTyping: true}))
	req.Equal([]event.DomainEvent{event.UserTyping{UserID: "alice", IsTyping: true}}, drain(bob))
}

func TestDispatcher_BroadcastPresence_Excludes_Self(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	alice := sink.NewConnectionSink(10)
	bob := sink.NewConnectionSink(10)
	carol := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	f.registry.Register("bob", bob)
	f.registry.Register("carol", carol)

	// When alice comes online
	f.dispatcher.BroadcastPresence(ctx, "alice", true)

	// Then every other online user is told, alice is not
	req.Empty(drain(alice))
	req.Equal([]event.DomainEvent{event.UserOnline{UserID: "alice"}}, drain(bob))
	req.Equal([]event.DomainEvent{event.UserOnline{UserID: "alice"}}, drain(carol))
}

func TestDispatcher_BroadcastPresence_Survives_Full_Buffer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	slow := sink.NewConnectionSink(1)
	bob := sink.NewConnectionSink(10)
	f.registry.Register("slow", slow)
	f.registry.Register("bob", bob)
	req.NoError(slow.Consume(ctx, event.UserTyping{UserID: "x"}))

	// When one recipient cannot keep up
	f.dispatcher.BroadcastPresence(ctx, "alice", false)

	// Then the others still receive the event
	req.Equal([]event.DomainEvent{event.UserOffline{UserID: "alice"}}, drain(bob))
	req.Len(drain(slow), 1)
}

func TestDispatcher_DeliverBacklog_Notifies_Online_Senders(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	alice := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	m1 := newMessage("alice", "bob", chat.StatusDelivered)
	m2 := newMessage("alice", "bob", chat.StatusDelivered)
	m3 := newMessage("carol", "bob", chat.StatusDelivered)

	// Given bob has three pending messages, carol is offline
	f.messages.EXPECT().
		UpdateStatus(gomock.Any(), chat.StatusFilter{ReceiverID: "bob", Statuses: []chat.Status{chat.StatusSent}}, chat.StatusDelivered).
		Return([]chat.Message{m1, m2, m3}, nil).
		Times(1)

	// When bob connects
	flipped, err := f.dispatcher.DeliverBacklog(ctx, "bob")

	// Then alice gets exactly one delivered event per message, in order
	req.NoError(err)
	req.Equal(3, flipped)
	req.Equal([]event.DomainEvent{
		event.MessageDelivered{MessageID: m1.ID, ReceiverID: "bob"},
		event.MessageDelivered{MessageID: m2.ID, ReceiverID: "bob"},
	}, drain(alice))
}

func TestDispatcher_DeliverBacklog_Partial_Failure_Still_Notifies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	alice := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	m1 := newMessage("alice", "bob", chat.StatusDelivered)

	// Given the first batch committed and the second one failed
	f.messages.EXPECT().
		UpdateStatus(gomock.Any(), runtime.BacklogTransition("bob").Filter, chat.StatusDelivered).
		Return([]chat.Message{m1}, stderrors.New("timeout"))

	// When bob connects
	flipped, err := f.dispatcher.DeliverBacklog(ctx, "bob")

	// Then the committed message is acknowledged and the failure reported
	req.True(errors.IsPersistence(err))
	req.Equal(1, flipped)
	req.Equal([]event.DomainEvent{event.MessageDelivered{MessageID: m1.ID, ReceiverID: "bob"}}, drain(alice))
}

func TestDispatcher_MarkRead_Notifies_Counterpart_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	alice := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)
	filter := chat.StatusFilter{
		ReceiverID: "bob",
		SenderID:   "alice",
		Statuses:   []chat.Status{chat.StatusSent, chat.StatusDelivered},
	}

	// Given two unseen messages, then nothing left on the second read
	gomock.InOrder(
		f.messages.EXPECT().UpdateStatus(gomock.Any(), filter, chat.StatusSeen).
			Return([]chat.Message{newMessage("alice", "bob", chat.StatusSeen), newMessage("alice", "bob", chat.StatusSeen)}, nil),
		f.messages.EXPECT().UpdateStatus(gomock.Any(), filter, chat.StatusSeen).
			Return(nil, nil),
	)

	// When bob reads the conversation twice
	first, err := f.dispatcher.MarkRead(ctx, chat.MarkReadCommand{ReaderID: "bob", CounterpartID: "alice"})
	req.NoError(err)
	second, err := f.dispatcher.MarkRead(ctx, chat.MarkReadCommand{ReaderID: "bob", CounterpartID: "alice"})
	req.NoError(err)

	// Then a single seen event is emitted for the batch, none for the redundant read
	req.Equal(2, first)
	req.Equal(0, second)
	req.Equal([]event.DomainEvent{event.MessagesSeen{By: "bob"}}, drain(alice))
}

func TestDispatcher_MarkRead_Failure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)

	_, err := f.dispatcher.MarkRead(ctx, chat.MarkReadCommand{ReaderID: "bob"})
	req.ErrorIs(err, errors.ErrInvalidIdentity)

	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), chat.StatusSeen).Return(nil, stderrors.New("timeout"))
	_, err = f.dispatcher.MarkRead(ctx, chat.MarkReadCommand{ReaderID: "bob", CounterpartID: "alice"})
	req.True(errors.IsPersistence(err))
}

func TestDispatcher_MarkRead_Partial_Failure_Still_Notifies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	alice := sink.NewConnectionSink(10)
	f.registry.Register("alice", alice)

	// Given one batch was marked seen before the store failed
	f.messages.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), chat.StatusSeen).
		Return([]chat.Message{newMessage("alice", "bob", chat.StatusSeen)}, stderrors.New("timeout"))

	// When bob reads the conversation
	seen, err := f.dispatcher.MarkRead(ctx, chat.MarkReadCommand{ReaderID: "bob", CounterpartID: "alice"})

	// Then alice still learns about it
	req.True(errors.IsPersistence(err))
	req.Equal(1, seen)
	req.Equal([]event.DomainEvent{event.MessagesSeen{By: "bob"}}, drain(alice))
}

func TestDispatcher_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newDispatcherFixture(t)
	history := []chat.Message{newMessage("alice", "bob", chat.StatusSeen), newMessage("bob", "alice", chat.StatusSent)}

	// When the reader gives no limit, the default applies
	f.messages.EXPECT().Conversation(gomock.Any(), chat.UserID("bob"), chat.UserID("alice"), 100).Return(history, nil)
	messages, err := f.dispatcher.Conversation(ctx, chat.ConversationQuery{ReaderID: "bob", CounterpartID: "alice"})
	req.NoError(err)
	req.Equal(history, messages)

	// When an explicit limit is given it is passed through
	f.messages.EXPECT().Conversation(gomock.Any(), chat.UserID("bob"), chat.UserID("alice"), 5).Return(nil, stderrors.New("timeout"))
	_, err = f.dispatcher.Conversation(ctx, chat.ConversationQuery{ReaderID: "bob", CounterpartID: "alice", Limit: 5})
	req.True(errors.IsPersistence(err))

	// When the reader asks for their own conversation, nothing is read
	_, err = f.dispatcher.Conversation(ctx, chat.ConversationQuery{ReaderID: "bob", CounterpartID: "bob"})
	req.ErrorIs(err, errors.ErrInvalidIdentity)
}
