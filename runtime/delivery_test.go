package runtime_test

import (
	"chat-presence/domain/chat"
	"chat-presence/runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDelivery_Transitions(t *testing.T) {
	req := require.New(t)

	m := chat.Message{ID: uuid.New(), SenderID: "alice", ReceiverID: "bob", Status: chat.StatusSent}
	direct := runtime.DirectTransition(m)
	req.Equal(chat.StatusDelivered, direct.To)
	req.Equal(chat.StatusFilter{
		ReceiverID: "bob",
		SenderID:   "alice",
		MessageID:  m.ID,
		Statuses:   []chat.Status{chat.StatusSent},
	}, direct.Filter)
	req.True(direct.Filter.Matches(m))

	req.Empty(runtime.Predecessors(chat.StatusSent))
	req.Equal([]chat.Status{chat.StatusSent}, runtime.Predecessors(chat.StatusDelivered))
	req.Equal([]chat.Status{chat.StatusSent, chat.StatusDelivered}, runtime.Predecessors(chat.StatusSeen))

	backlog := runtime.BacklogTransition("bob")
	req.Equal(chat.StatusDelivered, backlog.To)
	req.Equal(chat.StatusFilter{ReceiverID: "bob", Statuses: []chat.Status{chat.StatusSent}}, backlog.Filter)

	read := runtime.ReadTransition("bob", "alice")
	req.Equal(chat.StatusSeen, read.To)
	req.Equal(chat.UserID("bob"), read.Filter.ReceiverID)
	req.Equal(chat.UserID("alice"), read.Filter.SenderID)
}
