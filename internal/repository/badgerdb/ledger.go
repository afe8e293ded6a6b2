package badgerdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ledger stores the ordered, append-only messages of one kind of conversation.
type ledger[T any] struct {
	entryPrefix string
	indexPrefix string
}

func (l ledger[T]) prefix(owner string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", l.entryPrefix, owner))
}

// entryKey pads the timestamp to 19 digits so that lexicographic order is chronological.
// The message id breaks ties between messages written in the same nanosecond.
func (l ledger[T]) entryKey(owner string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%019d:%s", l.entryPrefix, owner, at.UnixNano(), id))
}

func (l ledger[T]) indexKey(owner, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", l.indexPrefix, owner, id))
}

func (l ledger[T]) put(txn *badger.Txn, owner string, at time.Time, id string, v *T) error {
	key := l.entryKey(owner, at, id)
	if err := setJSON(txn, key, v); err != nil {
		return err
	}
	return txn.Set(l.indexKey(owner, id), key)
}

// locate resolves a message id to its entry key, nil when the id is unknown.
func (l ledger[T]) locate(txn *badger.Txn, owner, id string) ([]byte, error) {
	item, err := txn.Get(l.indexKey(owner, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// scan walks the ledger newest first, starting strictly before cursor when it is known.
// fn returns false to stop.
func (l ledger[T]) scan(txn *badger.Txn, owner string, cursor *string, fn func(key []byte, v *T) (bool, error)) error {
	prefix := l.prefix(owner)

	var seekKey []byte
	if cursor != nil {
		key, err := l.locate(txn, owner, *cursor)
		if err != nil {
			return err
		}
		seekKey = key
	}
	skipFirst := seekKey != nil
	if seekKey == nil {
		seekKey = append(bytes.Clone(prefix), 0xff)
	}

	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	it.Seek(seekKey)
	if skipFirst && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
		it.Next()
	}

	for ; it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return err
		}
		more, err := fn(item.KeyCopy(nil), &v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (l ledger[T]) list(txn *badger.Txn, owner string, cursor *string, limit int) ([]T, error) {
	var out []T
	if limit <= 0 {
		return out, nil
	}
	err := l.scan(txn, owner, cursor, func(_ []byte, v *T) (bool, error) {
		out = append(out, *v)
		return len(out) < limit, nil
	})
	return out, err
}
