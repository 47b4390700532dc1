// Package wire defines the JSON frames exchanged with clients on every transport.
package wire

import (
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/services"
	"time"
)

// ClientEvent is an inbound frame.
type ClientEvent struct {
	Type          string `json:"type"`
	ReceiverID    string `json:"receiver_id,omitempty"`
	Content       string `json:"content,omitempty"`
	IsTyping      bool   `json:"is_typing,omitempty"`
	CounterpartID string `json:"counterpart_id,omitempty"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// ServerEvent is an outbound frame.
type ServerEvent struct {
	Type       string   `json:"type"`
	Message    *Message `json:"message,omitempty"`
	MessageID  string   `json:"message_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	ReceiverID string   `json:"receiver_id,omitempty"`
	IsTyping   bool     `json:"is_typing,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func (c ClientEvent) ToCommand() services.Command {
	return services.Command{
		Type:          services.CommandType(c.Type),
		ReceiverID:    chat.UserID(c.ReceiverID),
		Content:       c.Content,
		IsTyping:      c.IsTyping,
		CounterpartID: chat.UserID(c.CounterpartID),
	}
}

func FromMessage(m chat.Message) *Message {
	return &Message{
		ID:         m.ID.String(),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		Content:    m.Content,
		Status:     m.Status.String(),
		Timestamp:  m.CreatedAt,
	}
}

// FromEvent maps a domain event to its frame. Unknown events report false.
func FromEvent(e event.DomainEvent) (ServerEvent, bool) {
	frame := ServerEvent{Type: string(e.Kind())}
	switch evt := e.(type) {
	case event.NewMessage:
		frame.Message = FromMessage(evt.Message)
	case event.MessageSent:
		frame.Message = FromMessage(evt.Message)
	case event.MessageDelivered:
		frame.MessageID = evt.MessageID.String()
		frame.ReceiverID = string(evt.ReceiverID)
	case event.MessagesSeen:
		frame.UserID = string(evt.By)
	case event.UserOnline:
		frame.UserID = string(evt.UserID)
	case event.UserOffline:
		frame.UserID = string(evt.UserID)
	case event.UserTyping:
		frame.UserID = string(evt.UserID)
		frame.IsTyping = evt.IsTyping
	case event.Error:
		frame.Reason = evt.Reason
	default:
		return ServerEvent{}, false
	}
	return frame, true
}
