//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-presence/domain/chat"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	GetUser(ctx context.Context, id chat.UserID) (User, error)
}

// UserRepository stores accounts and their presence flag in badger.
//
// Three key families are involved:
//   - "user:{id}" holds the account record. It is written once, at
//     registration, and only read afterwards.
//   - "email:{lowercased email}" points to the account id and enforces
//     email uniqueness.
//   - "presence:{id}" holds the online flag and last-seen instant. It is the
//     only key rewritten on connect and disconnect.
//
// Keeping presence out of the account record matters because message writes
// read "user:" keys to check both parties exist: badger would abort such a
// write with ErrConflict whenever the record changed underneath it.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the repository representation of an account and its presence flag.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	Online       bool
	LastSeen     time.Time
	CreatedAt    time.Time
}

func (u User) Presence() chat.Presence {
	return chat.Presence{Online: u.Online, LastSeen: u.LastSeen}
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

func emailKey(email string) []byte {
	return []byte("email:" + strings.ToLower(email))
}

func presenceKey(id string) []byte {
	return []byte("presence:" + id)
}

// CreateUser persists a new account and returns its generated ID.
// The email is unique across accounts.
//
// The account, its email index entry and an initial offline presence are
// written in one transaction. Two registrations racing on the same email
// conflict; the replay then sees the winner's index entry and reports
// ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(username, email, hashedPassword string) (string, error) {
	now := time.Now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		LastSeen:     now,
		CreatedAt:    now,
	}

	err := update(u.db, func(txn *badger.Txn) error {
		key := emailKey(email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, []byte(user.ID)); err != nil {
			return err
		}
		if err := txn.Set(presenceKey(user.ID), marshalPresence(user.Presence())); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), marshalUser(user))
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUser returns the account merged with its current presence.
func (u *UserRepository) GetUser(ctx context.Context, id chat.UserID) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		user, err = getUser(txn, string(id))
		return err
	})
	return user, err
}

// Exists reports whether id belongs to a registered account.
func (u *UserRepository) Exists(ctx context.Context, id chat.UserID) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := txn.Get(userKey(string(id)))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetOnline updates the persisted presence flag and last-seen instant.
// Only the "presence:" key is written; the account record is read to reject
// unknown identities but is never rewritten.
func (u *UserRepository) SetOnline(ctx context.Context, id chat.UserID, online bool, at time.Time) error {
	err := update(u.db, func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := txn.Get(userKey(string(id))); err != nil {
			return err
		}
		presence := chat.Presence{Online: online, LastSeen: at.UTC()}
		return txn.Set(presenceKey(string(id)), marshalPresence(presence))
	})
	if err != nil {
		return errors.Persistence("set online", fmt.Errorf("user %s: %w", id, err))
	}
	return nil
}

// getUser loads the account and overlays its presence record, if any.
func getUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}
	var user User
	if err = item.Value(func(val []byte) error {
		user, err = unmarshalUser(val)
		return err
	}); err != nil {
		return User{}, err
	}

	item, err = txn.Get(presenceKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return user, nil
	}
	if err != nil {
		return User{}, err
	}
	err = item.Value(func(val []byte) error {
		presence, err := unmarshalPresence(val)
		if err != nil {
			return err
		}
		user.Online, user.LastSeen = presence.Online, presence.LastSeen
		return nil
	})
	return user, err
}
