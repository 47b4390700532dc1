package repositories

import (
	"chat-presence/domain/chat"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func createUsers(t *testing.T, repo *UserRepository, names ...string) []chat.UserID {
	ids := make([]chat.UserID, 0, len(names))
	for _, name := range names {
		id, err := repo.CreateUser(name, name+"@example.com", "hash")
		require.NoError(t, err)
		ids = append(ids, chat.UserID(id))
	}
	return ids
}
