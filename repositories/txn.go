package repositories

import (
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
)

// Badger runs optimistic transactions: a commit fails with ErrConflict when a
// key the transaction read was written by another commit in the meantime.
const maxConflictRetries = 5

// update runs fn in a read-write transaction and replays it on conflict.
// fn must reset any state it captures, since it may run more than once.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
