package chat

import (
	"chat-presence/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendMessageCommand_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  SendMessageCommand
		err  error
	}{
		{name: "valid", cmd: SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"}},
		{name: "empty content", cmd: SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: ""}, err: errors.ErrEmptyContent},
		{name: "blank content", cmd: SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: " \n\t"}, err: errors.ErrEmptyContent},
		{name: "missing receiver", cmd: SendMessageCommand{SenderID: "alice", Content: "hi"}, err: errors.ErrInvalidIdentity},
		{name: "receiver with separator", cmd: SendMessageCommand{SenderID: "alice", ReceiverID: "b:ob", Content: "hi"}, err: errors.ErrInvalidIdentity},
		{name: "too long", cmd: SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: strings.Repeat("é", 11)}, err: errors.ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := tt.cmd.Validate(10)
			if tt.err == nil {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, tt.err)
			// Every rejection is a validation failure
			req.True(errors.IsValidation(err))
		})
	}
}

func TestSendMessageCommand_Validate_Without_Length_Limit(t *testing.T) {
	req := require.New(t)
	cmd := SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: strings.Repeat("a", 100_000)}
	req.NoError(cmd.Validate(0))
}

func TestMarkReadCommand_Validate(t *testing.T) {
	req := require.New(t)
	req.NoError(MarkReadCommand{ReaderID: "bob", CounterpartID: "alice"}.Validate())
	req.ErrorIs(MarkReadCommand{ReaderID: "bob"}.Validate(), errors.ErrInvalidIdentity)
	req.ErrorIs(TypingCommand{SenderID: "bob"}.Validate(), errors.ErrInvalidIdentity)
}

func TestConversationQuery_Validate(t *testing.T) {
	req := require.New(t)
	req.NoError(ConversationQuery{ReaderID: "bob", CounterpartID: "alice", Limit: 20}.Validate())
	req.NoError(ConversationQuery{ReaderID: "bob", CounterpartID: "alice"}.Validate())

	// A conversation with oneself or with nobody is rejected
	req.ErrorIs(ConversationQuery{ReaderID: "bob", CounterpartID: "bob"}.Validate(), errors.ErrInvalidIdentity)
	req.ErrorIs(ConversationQuery{ReaderID: "bob"}.Validate(), errors.ErrInvalidIdentity)
	req.ErrorIs(ConversationQuery{ReaderID: "bob", CounterpartID: "alice", Limit: -1}.Validate(), errors.ErrInvalidIdentity)
}
