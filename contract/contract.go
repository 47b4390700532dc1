//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is the transport handle of one live session.
// Two handles are the same connection when their IDs are equal.
type Connection interface {
	EventSink
	ID() string
}

// Session is one live binding between an identity and its connection.
type Session struct {
	Identity   chat.UserID
	Connection Connection
}

type IRegistry interface {
	Register(identity chat.UserID, conn Connection)
	Lookup(identity chat.UserID) (Connection, bool)
	Deregister(identity chat.UserID, conn Connection) bool
	Snapshot() []chat.UserID
	// Sessions is a point-in-time copy of every live binding.
	Sessions() []Session
}

// MessageStore is the persistence contract consumed by the dispatcher.
// Implementations bound every call with their own timeout.
type MessageStore interface {
	CreateMessage(ctx context.Context, senderID, receiverID chat.UserID, content string, initial chat.Status) (chat.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (chat.Message, bool, error)
	// UpdateStatus moves every message selected by filter to newStatus and
	// returns the affected messages ordered by creation time.
	// On failure the messages already committed are returned with the error.
	UpdateStatus(ctx context.Context, filter chat.StatusFilter, newStatus chat.Status) ([]chat.Message, error)
	// Conversation returns the latest messages exchanged between a and b in
	// both directions, oldest first.
	Conversation(ctx context.Context, a, b chat.UserID, limit int) ([]chat.Message, error)
}

type PresenceStore interface {
	SetOnline(ctx context.Context, identity chat.UserID, online bool, at time.Time) error
}

type UserDirectory interface {
	Exists(ctx context.Context, identity chat.UserID) (bool, error)
}

// MessageListener observes messages once they are persisted.
type MessageListener interface {
	MessageCreated(message chat.Message)
}
