// Package chat contains core concepts of the one-to-one chat system.
// No runtime, network, or storage logic should be added here.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// UserID is the stable identity issued by the account store.
type UserID string

func (u UserID) String() string { return string(u) }

// Message is a persisted one-to-one message.
// ID and CreatedAt are assigned by the store and never change.
type Message struct {
	ID         uuid.UUID
	SenderID   UserID
	ReceiverID UserID
	Content    string
	Status     Status
	CreatedAt  time.Time
}

// Presence is the persisted online flag of a user.
type Presence struct {
	Online   bool
	LastSeen time.Time
}

// StatusFilter selects messages for a batch status update.
// ReceiverID is mandatory, an empty SenderID matches every sender and a nil
// MessageID matches every message.
type StatusFilter struct {
	ReceiverID UserID
	SenderID   UserID
	MessageID  uuid.UUID
	Statuses   []Status
}

// Matches reports whether m is selected by the filter.
func (f StatusFilter) Matches(m Message) bool {
	if m.ReceiverID != f.ReceiverID {
		return false
	}
	if f.SenderID != "" && m.SenderID != f.SenderID {
		return false
	}
	if f.MessageID != uuid.Nil && m.ID != f.MessageID {
		return false
	}
	for _, s := range f.Statuses {
		if m.Status == s {
			return true
		}
	}
	return false
}
