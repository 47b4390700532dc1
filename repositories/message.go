package repositories

import (
	"chat-presence/domain/chat"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultFlipBatchSize = 1000

type MessageRepository struct {
	db        *badger.DB
	log       *slog.Logger
	timeout   time.Duration
	batchSize int

	clockMu sync.Mutex
	lastAt  time.Time
	now     func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, timeout time.Duration) *MessageRepository {
	return &MessageRepository{
		db:        db,
		log:       log,
		timeout:   timeout,
		batchSize: defaultFlipBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func messageKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

// inboxKey indexes a message by receiver and status:
// "inbox:{receiver}:{status}:{sender}:{timestamp_padded}:{uuid}".
// A status change moves the key from one status prefix to another, so the
// pending backlog of a receiver is a single prefix scan.
func inboxKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("inbox:%s:%s:%s:%019d:%s",
		m.ReceiverID, m.Status, m.SenderID, m.CreatedAt.UnixNano(), m.ID))
}

func inboxPrefix(receiver chat.UserID, status chat.Status, sender chat.UserID) []byte {
	prefix := fmt.Sprintf("inbox:%s:%s:", receiver, status)
	if sender != "" {
		prefix += string(sender) + ":"
	}
	return []byte(prefix)
}

// inboxRef is what an inbox key tells about its message without loading it.
type inboxRef struct {
	createdAt int64
	id        uuid.UUID
}

func parseInboxKey(key []byte) (inboxRef, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 6 {
		return inboxRef{}, fmt.Errorf("corrupted inbox key %q", key)
	}
	createdAt, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return inboxRef{}, fmt.Errorf("corrupted inbox key %q: %w", key, err)
	}
	id, err := uuid.Parse(parts[5])
	if err != nil {
		return inboxRef{}, fmt.Errorf("corrupted inbox key %q: %w", key, err)
	}
	return inboxRef{createdAt: createdAt, id: id}, nil
}

// nextTimestamp hands out strictly increasing creation times so that messages
// created back to back keep their order in the inbox index.
func (m *MessageRepository) nextTimestamp() time.Time {
	m.clockMu.Lock()
	defer m.clockMu.Unlock()
	at := m.now()
	if !at.After(m.lastAt) {
		at = m.lastAt.Add(time.Nanosecond)
	}
	m.lastAt = at
	return at
}

func (m *MessageRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// CreateMessage persists a new message together with its inbox index entry.
// Both users must exist and the content must not be empty.
//
// The existence check reads the "user:" records, which never change after
// registration; presence lives under its own key so that a user going online
// or offline cannot conflict with messages addressed to them.
func (m *MessageRepository) CreateMessage(ctx context.Context, senderID, receiverID chat.UserID,
	content string, initial chat.Status) (chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, errors.Persistence("create message", fmt.Errorf("empty content"))
	}
	if !initial.Valid() {
		return chat.Message{}, errors.Persistence("create message", fmt.Errorf("invalid status %d", initial))
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Status:     initial,
		CreatedAt:  m.nextTimestamp(),
	}

	err := update(m.db, func(txn *badger.Txn) error {
		for _, id := range []chat.UserID{senderID, receiverID} {
			if _, err := txn.Get(userKey(string(id))); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("unknown user %s", id)
				}
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := txn.Set(messageKey(message.ID), marshalMessage(message)); err != nil {
			return err
		}
		return txn.Set(inboxKey(message), nil)
	})
	if err != nil {
		return chat.Message{}, errors.Persistence("create message", err)
	}
	return message, nil
}

func (m *MessageRepository) GetMessage(ctx context.Context, id uuid.UUID) (chat.Message, bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, false, nil
	}
	if err != nil {
		return chat.Message{}, false, errors.Persistence("get message", err)
	}
	return message, true, nil
}

func getMessage(txn *badger.Txn, id uuid.UUID) (chat.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return chat.Message{}, err
	}
	var message chat.Message
	err = item.Value(func(val []byte) error {
		message, err = unmarshalMessage(val)
		return err
	})
	return message, err
}

// UpdateStatus moves every message matched by filter to newStatus.
// Statuses in the filter that are not strictly before newStatus are ignored,
// so the store never lets a message regress. Large selections are committed
// in several transactions; the result lists every affected message ordered
// by creation time. When a later transaction fails, the messages committed
// by the earlier ones are returned together with the error.
func (m *MessageRepository) UpdateStatus(ctx context.Context, filter chat.StatusFilter,
	newStatus chat.Status) ([]chat.Message, error) {
	if filter.ReceiverID == "" {
		return nil, errors.Persistence("update status", fmt.Errorf("receiver is required"))
	}
	if !newStatus.Valid() {
		return nil, errors.Persistence("update status", fmt.Errorf("invalid status %d", newStatus))
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	sources := lo.Filter(lo.Uniq(filter.Statuses), func(s chat.Status, _ int) bool {
		return s.Valid() && s < newStatus
	})
	if len(sources) == 0 {
		return nil, nil
	}

	var updated []chat.Message
	var failure error
	for {
		batch, scanned, err := m.updateBatch(ctx, filter, sources, newStatus)
		if err != nil {
			failure = errors.Persistence("update status", err)
			break
		}
		updated = append(updated, batch...)
		if scanned < m.batchSize || len(batch) == 0 {
			break
		}
	}

	sortByCreation(updated)
	return updated, failure
}

func (m *MessageRepository) updateBatch(ctx context.Context, filter chat.StatusFilter,
	sources []chat.Status, newStatus chat.Status) ([]chat.Message, int, error) {
	var updated []chat.Message
	var scanned int
	err := update(m.db, func(txn *badger.Txn) error {
		updated, scanned = nil, 0
		candidates, err := m.collectCandidates(txn, filter, sources)
		if err != nil {
			return err
		}
		scanned = len(candidates)
		for _, message := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !filter.Matches(message) {
				continue
			}
			next, ok := message.Status.Advance(newStatus)
			if !ok {
				continue
			}
			if err = txn.Delete(inboxKey(message)); err != nil {
				return err
			}
			message.Status = next
			if err = txn.Set(messageKey(message.ID), marshalMessage(message)); err != nil {
				return err
			}
			if err = txn.Set(inboxKey(message), nil); err != nil {
				return err
			}
			updated = append(updated, message)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, scanned, nil
}

// collectCandidates loads at most one batch of messages selected by filter.
// A filter naming a single message skips the inbox scan.
func (m *MessageRepository) collectCandidates(txn *badger.Txn, filter chat.StatusFilter,
	sources []chat.Status) ([]chat.Message, error) {
	if filter.MessageID != uuid.Nil {
		message, err := getMessage(txn, filter.MessageID)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !lo.Contains(sources, message.Status) {
			return nil, nil
		}
		return []chat.Message{message}, nil
	}

	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var refs []inboxRef
scan:
	for _, status := range sources {
		prefix := inboxPrefix(filter.ReceiverID, status, filter.SenderID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(refs) == m.batchSize {
				m.log.Debug(fmt.Sprintf("Status update batch of %d reached", m.batchSize))
				break scan
			}
			ref, err := parseInboxKey(it.Item().Key())
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
	}
	return m.loadRefs(txn, refs)
}

func (m *MessageRepository) loadRefs(txn *badger.Txn, refs []inboxRef) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, len(refs))
	for _, ref := range refs {
		message, err := getMessage(txn, ref.id)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", ref.id, err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// Conversation returns the latest limit messages exchanged between a and b,
// in both directions, oldest first. Both inboxes are scanned across every
// status; only the selected messages are loaded.
func (m *MessageRepository) Conversation(ctx context.Context, a, b chat.UserID, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		// 1. Collect key references from both inboxes, one prefix per status
		var refs []inboxRef
		for _, pair := range [][2]chat.UserID{{a, b}, {b, a}} {
			for status := chat.StatusSent; status <= chat.StatusSeen; status++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				prefix := inboxPrefix(pair[0], status, pair[1])
				for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
					ref, err := parseInboxKey(it.Item().Key())
					if err != nil {
						return err
					}
					refs = append(refs, ref)
				}
			}
		}

		// 2. Merge both directions by creation time and keep the tail
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].createdAt == refs[j].createdAt {
				return refs[i].id.String() < refs[j].id.String()
			}
			return refs[i].createdAt < refs[j].createdAt
		})
		if len(refs) > limit {
			refs = refs[len(refs)-limit:]
		}

		// 3. Load only the values that made the cut
		var err error
		messages, err = m.loadRefs(txn, refs)
		return err
	})
	if err != nil {
		return nil, errors.Persistence("conversation", err)
	}
	return messages, nil
}

func sortByCreation(messages []chat.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID.String() < messages[j].ID.String()
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
