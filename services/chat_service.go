//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/runtime"
	"chat-presence/search"
	"context"
	"fmt"
	"log/slog"
)

type CommandType string

const (
	CommandSend     CommandType = "send_message"
	CommandTyping   CommandType = "typing"
	CommandMarkRead CommandType = "messages_read"
)

// Command is one inbound event read from a connection.
type Command struct {
	Type          CommandType
	ReceiverID    chat.UserID
	Content       string
	IsTyping      bool
	CounterpartID chat.UserID
}

type Searcher interface {
	Search(ctx context.Context, participant chat.UserID, text string, limit int) ([]search.Hit, error)
}

type IChatService interface {
	Connect(ctx context.Context, identity chat.UserID, conn contract.Connection)
	Disconnect(ctx context.Context, identity chat.UserID, conn contract.Connection)
	Handle(ctx context.Context, identity chat.UserID, conn contract.Connection, cmd Command)
	Search(ctx context.Context, identity chat.UserID, text string, limit int) ([]search.Hit, error)
	Conversation(ctx context.Context, identity, counterpart chat.UserID, limit int) ([]chat.Message, error)
}

type ChatService struct {
	log        *slog.Logger
	sessions   *runtime.SessionManager
	dispatcher *runtime.Dispatcher
	searcher   Searcher
}

func NewChatService(log *slog.Logger, sessions *runtime.SessionManager,
	dispatcher *runtime.Dispatcher, searcher Searcher) *ChatService {
	return &ChatService{log: log, sessions: sessions, dispatcher: dispatcher, searcher: searcher}
}

func (s *ChatService) Connect(ctx context.Context, identity chat.UserID, conn contract.Connection) {
	s.sessions.Connect(ctx, identity, conn)
}

func (s *ChatService) Disconnect(ctx context.Context, identity chat.UserID, conn contract.Connection) {
	s.sessions.Disconnect(ctx, identity, conn)
}

// Handle processes one inbound command of identity's connection.
// Failures never end the session: they are reported to conn as error events.
func (s *ChatService) Handle(ctx context.Context, identity chat.UserID, conn contract.Connection, cmd Command) {
	var err error
	switch cmd.Type {
	case CommandSend:
		err = s.send(ctx, identity, conn, cmd)
	case CommandTyping:
		err = s.dispatcher.SendTyping(ctx, chat.TypingCommand{
			SenderID:   identity,
			ReceiverID: cmd.ReceiverID,
			IsTyping:   cmd.IsTyping,
		})
	case CommandMarkRead:
		_, err = s.dispatcher.MarkRead(ctx, chat.MarkReadCommand{
			ReaderID:      identity,
			CounterpartID: cmd.CounterpartID,
		})
	default:
		err = fmt.Errorf("%w: unknown command %q", errors.ErrValidation, cmd.Type)
	}
	if err != nil {
		s.reject(ctx, identity, conn, cmd, err)
	}
}

// send acknowledges a message to its sender. When the send itself delivered
// the message, the delivered ack comes first, then the sent ack carrying the
// final status.
func (s *ChatService) send(ctx context.Context, identity chat.UserID, conn contract.Connection, cmd Command) error {
	receipt, err := s.dispatcher.SendMessage(ctx, chat.SendMessageCommand{
		SenderID:   identity,
		ReceiverID: cmd.ReceiverID,
		Content:    cmd.Content,
	})
	if err != nil {
		return err
	}
	if receipt.DeliveredNow {
		s.ack(ctx, conn, event.MessageDelivered{MessageID: receipt.Message.ID, ReceiverID: receipt.Message.ReceiverID})
	}
	s.ack(ctx, conn, event.MessageSent{Message: receipt.Message})
	return nil
}

func (s *ChatService) Search(ctx context.Context, identity chat.UserID, text string, limit int) ([]search.Hit, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", errors.ErrValidation)
	}
	return s.searcher.Search(ctx, identity, text, limit)
}

// Conversation returns the latest messages identity exchanged with counterpart.
func (s *ChatService) Conversation(ctx context.Context, identity, counterpart chat.UserID, limit int) ([]chat.Message, error) {
	return s.dispatcher.Conversation(ctx, chat.ConversationQuery{
		ReaderID:      identity,
		CounterpartID: counterpart,
		Limit:         limit,
	})
}

func (s *ChatService) reject(ctx context.Context, identity chat.UserID, conn contract.Connection, cmd Command, err error) {
	reason := "internal error"
	switch {
	case errors.IsValidation(err):
		reason = err.Error()
		s.log.Debug("command rejected", "user_id", identity, "type", cmd.Type, "error", err)
	case errors.IsPersistence(err):
		reason = "storage unavailable"
		s.log.Error("command failed", "user_id", identity, "type", cmd.Type, "error", err)
	default:
		s.log.Error("command failed", "user_id", identity, "type", cmd.Type, "error", err)
	}
	s.ack(ctx, conn, event.Error{Reason: reason})
}

func (s *ChatService) ack(ctx context.Context, conn contract.Connection, evt event.DomainEvent) {
	if err := conn.Consume(ctx, evt); err != nil {
		s.log.Warn("ack not delivered", "connection_id", conn.ID(), "kind", evt.Kind(), "error", err)
	}
}
