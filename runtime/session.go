package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"context"
	"log/slog"
	"time"
)

// SessionManager drives the Offline -> Online -> Offline lifecycle of an identity.
type SessionManager struct {
	log        *slog.Logger
	registry   contract.IRegistry
	presence   contract.PresenceStore
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewSessionManager(log *slog.Logger, registry contract.IRegistry,
	presence contract.PresenceStore, dispatcher *Dispatcher) *SessionManager {
	return &SessionManager{
		log:        log,
		registry:   registry,
		presence:   presence,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Connect brings identity online through conn.
//
// Steps run in this order:
//  1. Register, so any send committed from now on finds the connection.
//  2. Persist the online flag.
//  3. Flip the backlog. Every message committed before step 1 is still sent
//     and is picked up here, so no message falls between the two paths.
//  4. Broadcast the new presence to the other online identities.
//
// Failures of the two persistence steps are logged and never abort the connect.
func (m *SessionManager) Connect(ctx context.Context, identity chat.UserID, conn contract.Connection) {
	m.registry.Register(identity, conn)

	if err := m.presence.SetOnline(ctx, identity, true, m.now()); err != nil {
		m.log.Error("failed to persist online flag", "user_id", identity, "error", err)
	}

	flipped, err := m.dispatcher.DeliverBacklog(ctx, identity)
	if err != nil {
		m.log.Error("backlog delivery failed", "user_id", identity, "error", err)
	} else if flipped > 0 {
		m.log.Debug("backlog delivered", "user_id", identity, "count", flipped)
	}

	m.dispatcher.BroadcastPresence(ctx, identity, true)
	m.log.Info("user connected", "user_id", identity, "connection_id", conn.ID())
}

// Disconnect takes identity offline unless conn was already superseded by a
// newer connection, in which case the identity stays online and nothing happens.
func (m *SessionManager) Disconnect(ctx context.Context, identity chat.UserID, conn contract.Connection) {
	if !m.registry.Deregister(identity, conn) {
		m.log.Debug("superseded connection closed", "user_id", identity, "connection_id", conn.ID())
		return
	}

	if err := m.presence.SetOnline(ctx, identity, false, m.now()); err != nil {
		m.log.Error("failed to persist offline flag", "user_id", identity, "error", err)
	}

	m.dispatcher.BroadcastPresence(ctx, identity, false)
	m.log.Info("user disconnected", "user_id", identity, "connection_id", conn.ID())
}
