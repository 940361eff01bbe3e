// Package state backs the pool's contract storage with a transactional
// key-value store. Every external call runs against a single batch that is
// committed in full or discarded in full, mirroring the all-or-nothing
// semantics of host-ledger execution.
package state

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	ErrClosed         = errors.New("state store is closed")
	ErrNotFound       = errors.New("key not found")
	ErrNotInitialized = errors.New("pool state is not initialized")

	// ErrInsufficientBiddingBalance is a checked-subtraction failure on the
	// bidding balance. It is never saturated away: an inconsistent debit is
	// a fatal input error.
	ErrInsufficientBiddingBalance = errors.New("insufficient bidding balance")
)

// Store wraps a pebble database. State-changing calls are serialized by a
// mutex: the host ledger never interleaves executions against one contract's
// storage, and neither do we.
type Store struct {
	mu sync.Mutex
	db *pebble.DB
}

// Open opens (or creates) the store at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMem opens an in-memory store. Test use only.
func OpenMem() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Close()
}

// Update runs fn against an indexed batch and commits it only if fn returns
// nil. Reads inside fn observe the batch's own writes.
func (s *Store) Update(fn func(tx *Txn) error) error {
	if s.db == nil {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewIndexedBatch()
	defer b.Close()

	if err := fn(&Txn{b: b}); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// View runs fn against a read-only view of the store. Writes made through
// the Txn are discarded.
func (s *Store) View(fn func(tx *Txn) error) error {
	if s.db == nil {
		return ErrClosed
	}
	b := s.db.NewIndexedBatch()
	defer b.Close()
	return fn(&Txn{b: b})
}
