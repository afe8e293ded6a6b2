// Package badgerdb implements the repositories on an embedded BadgerDB.
//
// Keys are laid out so that prefix scans answer every query:
//
//	participant:{id}
//	friend:{participant}:{friend}
//	session:{id}
//	psession:{participant}:{session}
//	msg:{session}:{unix_nano %019d}:{message}    message, sorted by time then id
//	msgid:{session}:{message}                    -> msg key
//	msgread:{session}:{message}                  -> readAt, present once read
//	group:{id}
//	member:{participant}:{group}
//	gmsg:{group}:{unix_nano %019d}:{message}
//	gmsgid:{group}:{message}                     -> gmsg key
//
// Badger transactions are optimistic, so every mutation of a session or group
// also holds that conversation's entry in a keyed mutex arena. Writers on the
// same conversation serialize instead of failing with ErrConflict.
package badgerdb

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vedran77/relay/internal/repository"
)

// Open opens (or creates) a database at path. An empty path keeps everything in memory.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

// NewStore wires the badger repositories onto one database.
func NewStore(db *badger.DB) *repository.Store {
	locks := newKeyedMutex()
	return &repository.Store{
		Participants: NewParticipantRepo(db),
		Friends:      NewFriendRepo(db),
		Sessions:     NewSessionRepo(db, locks),
		Groups:       NewGroupRepo(db, locks),
	}
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, err
	}
	return &v, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
