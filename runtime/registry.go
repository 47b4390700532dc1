package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[chat.UserID]contract.Connection
}

// Registry maps each identity to its single active connection.
// Identities are spread over independently locked shards so that
// operations on different identities rarely contend, while every
// operation on one identity goes through the same shard lock.
type Registry struct {
	shards [shardCount]*shard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[chat.UserID]contract.Connection)}
	}
	return r
}

func (r *Registry) shardFor(identity chat.UserID) *shard {
	return r.shards[xxhash.Sum64String(string(identity))%shardCount]
}

// Register binds conn to identity, replacing any previous connection.
// The replaced connection is not closed; it simply stops being reachable.
func (r *Registry) Register(identity chat.UserID, conn contract.Connection) {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[identity] = conn
}

func (r *Registry) Lookup(identity chat.UserID) (contract.Connection, bool) {
	s := r.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.sessions[identity]
	return conn, ok
}

// Deregister removes identity only while conn is still its registered connection.
// It reports whether the mapping was removed.
//
// The handle check and the delete happen under the same shard lock, so a
// Register racing a stale Deregister always settles on the newer connection:
//  1. Deregister first: the old mapping is removed, then Register installs the new one.
//  2. Register first: the stored handle no longer matches and Deregister is a no-op.
func (r *Registry) Deregister(identity chat.UserID, conn contract.Connection) bool {
	if conn == nil {
		return false
	}
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[identity]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(s.sessions, identity)
	return true
}

// Snapshot returns every online identity, sorted.
func (r *Registry) Snapshot() []chat.UserID {
	identities := lo.Map(r.Sessions(), func(s contract.Session, _ int) chat.UserID {
		return s.Identity
	})
	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })
	return identities
}

// Sessions returns a point-in-time copy of all live sessions.
// It works in two steps:
//  1. Read-locks every shard, always in index order so that two concurrent
//     snapshots can never deadlock each other.
//  2. Copies the bindings while no writer can touch any shard.
//
// Writers wait for the copy to finish, which keeps the result free of
// duplicates or half-applied register/deregister pairs.
func (r *Registry) Sessions() []contract.Session {
	for _, s := range r.shards {
		s.mu.RLock()
	}
	defer func() {
		for _, s := range r.shards {
			s.mu.RUnlock()
		}
	}()

	var sessions []contract.Session
	for _, s := range r.shards {
		for identity, conn := range s.sessions {
			sessions = append(sessions, contract.Session{Identity: identity, Connection: conn})
		}
	}
	return sessions
}

func (r *Registry) Len() int {
	return len(r.Sessions())
}
