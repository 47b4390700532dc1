// Package event defines the outbound events pushed to a live connection.
package event

import (
	"chat-presence/domain/chat"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNewMessage       Kind = "receive_message"
	KindMessageSent      Kind = "message_sent"
	KindMessageDelivered Kind = "message_delivered"
	KindMessagesSeen     Kind = "messages_seen"
	KindUserOnline       Kind = "user_online"
	KindUserOffline      Kind = "user_offline"
	KindUserTyping       Kind = "user_typing"
	KindError            Kind = "error"
)

type DomainEvent interface {
	Kind() Kind
}

// NewMessage is pushed to the receiver, carrying the post-transition status.
type NewMessage struct {
	Message chat.Message
}

func (NewMessage) Kind() Kind { return KindNewMessage }

// MessageSent acknowledges a send to the sender.
type MessageSent struct {
	Message chat.Message
}

func (MessageSent) Kind() Kind { return KindMessageSent }

type MessageDelivered struct {
	MessageID  uuid.UUID
	ReceiverID chat.UserID
}

func (MessageDelivered) Kind() Kind { return KindMessageDelivered }

// MessagesSeen tells a sender that By has read every message it sent them.
type MessagesSeen struct {
	By chat.UserID
}

func (MessagesSeen) Kind() Kind { return KindMessagesSeen }

type UserOnline struct {
	UserID chat.UserID
}

func (UserOnline) Kind() Kind { return KindUserOnline }

type UserOffline struct {
	UserID chat.UserID
}

func (UserOffline) Kind() Kind { return KindUserOffline }

type UserTyping struct {
	UserID   chat.UserID
	IsTyping bool
}

func (UserTyping) Kind() Kind { return KindUserTyping }

type Error struct {
	Reason string
}

func (Error) Kind() Kind { return KindError }
