package runtime

import (
	"chat-presence/domain/chat"
)

// Transition is a batch status change: every message matching Filter moves to To.
type Transition struct {
	Filter chat.StatusFilter
	To     chat.Status
}

// Predecessors lists the statuses that may legally move to s, oldest first.
func Predecessors(s chat.Status) []chat.Status {
	var res []chat.Status
	for p := chat.StatusSent; p < s; p++ {
		res = append(res, p)
	}
	return res
}

// DirectTransition delivers a single message that reached its receiver's
// connection at send time. It only applies while the message is still sent,
// so it never races a backlog flip into a second delivered notification.
func DirectTransition(m chat.Message) Transition {
	return Transition{
		Filter: chat.StatusFilter{
			ReceiverID: m.ReceiverID,
			SenderID:   m.SenderID,
			MessageID:  m.ID,
			Statuses:   []chat.Status{chat.StatusSent},
		},
		To: chat.StatusDelivered,
	}
}

// BacklogTransition flips every pending message addressed to identity.
func BacklogTransition(identity chat.UserID) Transition {
	return Transition{
		Filter: chat.StatusFilter{
			ReceiverID: identity,
			Statuses:   []chat.Status{chat.StatusSent},
		},
		To: chat.StatusDelivered,
	}
}

// ReadTransition marks as seen every unseen message counterpart sent to reader.
func ReadTransition(reader, counterpart chat.UserID) Transition {
	return Transition{
		Filter: chat.StatusFilter{
			ReceiverID: reader,
			SenderID:   counterpart,
			Statuses:   Predecessors(chat.StatusSeen),
		},
		To: chat.StatusSeen,
	}
}
