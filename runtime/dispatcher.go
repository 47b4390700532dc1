package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	"log/slog"
)

const defaultConversationLimit = 100

// Dispatcher routes messages and ephemeral events to the live connection of
// their target. An unreachable target is not an error: persisted messages are
// picked up by the backlog flip on the next connect, everything else is dropped.
type Dispatcher struct {
	log              *slog.Logger
	registry         contract.IRegistry
	messages         contract.MessageStore
	users            contract.UserDirectory
	listeners        []contract.MessageListener
	maxContentLength int
}

// Receipt is the outcome of a send as the sender sees it.
type Receipt struct {
	// Message carries the final status of the send.
	Message chat.Message
	// DeliveredNow is set when this send itself moved the message to delivered.
	// A backlog flip that won the race has already notified the sender.
	DeliveredNow bool
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry,
	messages contract.MessageStore, users contract.UserDirectory, maxContentLength int) *Dispatcher {
	return &Dispatcher{
		log:              log,
		registry:         registry,
		messages:         messages,
		users:            users,
		maxContentLength: maxContentLength,
	}
}

// AddListener registers observers notified of every persisted message.
func (d *Dispatcher) AddListener(listeners ...contract.MessageListener) *Dispatcher {
	d.listeners = append(d.listeners, listeners...)
	return d
}

// SendMessage persists a message and pushes it to the receiver when reachable.
//
// The message is always committed as sent before the receiver is looked up:
//  1. A receiver registering after the lookup runs its backlog flip after the
//     commit, so the flip picks the message up.
//  2. A receiver found by the lookup gets the push first; the message only
//     becomes delivered once the push was accepted by its connection.
//
// A closed or saturated receiver connection leaves the message sent.
func (d *Dispatcher) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (Receipt, error) {
	if err := cmd.Validate(d.maxContentLength); err != nil {
		return Receipt{}, err
	}
	exists, err := d.users.Exists(ctx, cmd.ReceiverID)
	if err != nil {
		return Receipt{}, errors.Persistence("lookup receiver", err)
	}
	if !exists {
		return Receipt{}, errors.ErrUnknownUser
	}

	message, err := d.messages.CreateMessage(ctx, cmd.SenderID, cmd.ReceiverID, cmd.Content, chat.StatusSent)
	if err != nil {
		return Receipt{}, errors.Persistence("create message", err)
	}
	for _, l := range d.listeners {
		l.MessageCreated(message)
	}

	conn, reachable := d.registry.Lookup(cmd.ReceiverID)
	if !reachable {
		return Receipt{Message: message}, nil
	}
	return d.deliverNow(ctx, conn, message), nil
}

func (d *Dispatcher) deliverNow(ctx context.Context, conn contract.Connection, message chat.Message) Receipt {
	delivered := message
	delivered.Status = chat.StatusDelivered
	if !d.push(ctx, message.ReceiverID, conn, event.NewMessage{Message: delivered}) {
		return Receipt{Message: message}
	}

	transition := DirectTransition(message)
	updated, err := d.messages.UpdateStatus(ctx, transition.Filter, transition.To)
	if err != nil {
		d.log.Error("immediate delivery not persisted", "message_id", message.ID, "error", err)
		return Receipt{Message: message}
	}
	if len(updated) == 1 {
		return Receipt{Message: updated[0], DeliveredNow: true}
	}

	// The receiver's backlog flip moved it first
	current, found, err := d.messages.GetMessage(ctx, message.ID)
	if err != nil || !found {
		d.log.Warn("message status unknown after delivery", "message_id", message.ID, "error", err)
		return Receipt{Message: message}
	}
	return Receipt{Message: current}
}

// SendTyping forwards a typing indicator. Nothing is stored or retried.
func (d *Dispatcher) SendTyping(ctx context.Context, cmd chat.TypingCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if conn, ok := d.registry.Lookup(cmd.ReceiverID); ok {
		d.push(ctx, cmd.ReceiverID, conn, event.UserTyping{UserID: cmd.SenderID, IsTyping: cmd.IsTyping})
	}
	return nil
}

// BroadcastPresence notifies every other online identity of identity's new state.
// Recipients come from a single registry snapshot.
func (d *Dispatcher) BroadcastPresence(ctx context.Context, identity chat.UserID, online bool) {
	var evt event.DomainEvent = event.UserOffline{UserID: identity}
	if online {
		evt = event.UserOnline{UserID: identity}
	}
	for _, session := range d.registry.Sessions() {
		if session.Identity == identity {
			continue
		}
		d.push(ctx, session.Identity, session.Connection, evt)
	}
}

// DeliverBacklog flips every pending message addressed to identity to delivered
// in a single store call, then tells each online sender which messages arrived.
// Messages committed before a store failure are still notified.
func (d *Dispatcher) DeliverBacklog(ctx context.Context, identity chat.UserID) (int, error) {
	transition := BacklogTransition(identity)
	flipped, err := d.messages.UpdateStatus(ctx, transition.Filter, transition.To)
	for _, m := range flipped {
		if conn, ok := d.registry.Lookup(m.SenderID); ok {
			d.push(ctx, m.SenderID, conn, event.MessageDelivered{MessageID: m.ID, ReceiverID: identity})
		}
	}
	if err != nil {
		return len(flipped), errors.Persistence("backlog flip", err)
	}
	return len(flipped), nil
}

// MarkRead marks as seen every unseen message the counterpart sent to the reader.
// The counterpart gets a single notification, and only if something changed.
func (d *Dispatcher) MarkRead(ctx context.Context, cmd chat.MarkReadCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}
	transition := ReadTransition(cmd.ReaderID, cmd.CounterpartID)
	seen, err := d.messages.UpdateStatus(ctx, transition.Filter, transition.To)
	if len(seen) > 0 {
		if conn, ok := d.registry.Lookup(cmd.CounterpartID); ok {
			d.push(ctx, cmd.CounterpartID, conn, event.MessagesSeen{By: cmd.ReaderID})
		}
	}
	if err != nil {
		return len(seen), errors.Persistence("mark read", err)
	}
	return len(seen), nil
}

// Conversation returns the latest messages exchanged by the reader and the
// counterpart, oldest first. A zero limit uses the default of 100.
func (d *Dispatcher) Conversation(ctx context.Context, q chat.ConversationQuery) ([]chat.Message, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultConversationLimit
	}
	messages, err := d.messages.Conversation(ctx, q.ReaderID, q.CounterpartID, limit)
	if err != nil {
		return nil, errors.Persistence("conversation", err)
	}
	return messages, nil
}

// push enqueues evt on conn and reports whether the connection accepted it.
func (d *Dispatcher) push(ctx context.Context, target chat.UserID, conn contract.Connection, evt event.DomainEvent) bool {
	if err := conn.Consume(ctx, evt); err != nil {
		d.log.Warn("event not delivered",
			"target", target,
			"connection_id", conn.ID(),
			"kind", evt.Kind(),
			"error", err)
		return false
	}
	return true
}
