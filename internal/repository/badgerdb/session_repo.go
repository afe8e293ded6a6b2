package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

var messages = ledger[domain.Message]{entryPrefix: "msg", indexPrefix: "msgid"}

type SessionRepo struct {
	db    *badger.DB
	locks *keyedMutex
}

func NewSessionRepo(db *badger.DB, locks *keyedMutex) *SessionRepo {
	return &SessionRepo{db: db, locks: locks}
}

func sessionKey(id string) []byte {
	return []byte("session:" + id)
}

// readKey marks a message as read; the value is the binary readAt.
func readKey(sessionID, messageID string) []byte {
	return []byte(fmt.Sprintf("msgread:%s:%s", sessionID, messageID))
}

func participantSessionKey(p domain.ParticipantID, sessionID string) []byte {
	return []byte(fmt.Sprintf("psession:%s:%s", p, sessionID))
}

func (r *SessionRepo) lock(id string) func() {
	return r.locks.Lock("session:" + id)
}

func (r *SessionRepo) CreateIfAbsent(_ context.Context, s *domain.Session) (bool, error) {
	defer r.lock(s.ID)()

	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[domain.Session](txn, sessionKey(s.ID))
		if err != nil || existing != nil {
			return err
		}
		if err := setJSON(txn, sessionKey(s.ID), s); err != nil {
			return err
		}
		for _, p := range s.Participants {
			if err := txn.Set(participantSessionKey(p, s.ID), nil); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	return created, err
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	var s *domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getJSON[domain.Session](txn, sessionKey(id))
		return err
	})
	return s, err
}

func (r *SessionRepo) ListByParticipant(_ context.Context, id domain.ParticipantID) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("psession:%s:", id))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		for _, sid := range ids {
			s, err := getJSON[domain.Session](txn, sessionKey(sid))
			if err != nil {
				return err
			}
			if s != nil {
				sessions = append(sessions, *s)
			}
		}
		return nil
	})
	slices.SortStableFunc(sessions, func(a, b domain.Session) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	return sessions, err
}

func (r *SessionRepo) AppendMessage(_ context.Context, msg *domain.Message) (*domain.Session, error) {
	defer r.lock(msg.SessionID)()

	var session *domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		s, err := getJSON[domain.Session](txn, sessionKey(msg.SessionID))
		if err != nil {
			return err
		}
		if s == nil {
			return repository.ErrNotFound
		}
		s.RecordMessage(msg.ID, msg.Sender, msg.Body, msg.Timestamp)
		if err := setJSON(txn, sessionKey(s.ID), s); err != nil {
			return err
		}
		if err := messages.put(txn, msg.SessionID, msg.Timestamp, msg.ID, msg); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepo) ListMessages(_ context.Context, sessionID string, cursor *string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = messages.list(txn, sessionID, cursor, limit)
		if err != nil {
			return err
		}
		for i := range out {
			if err := loadReadState(txn, &out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (r *SessionRepo) SoftDeleteLatest(_ context.Context, sessionID string, sender domain.ParticipantID, body string, at time.Time) (*domain.Message, error) {
	defer r.lock(sessionID)()

	var deleted *domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		var key []byte
		err := messages.scan(txn, sessionID, nil, func(k []byte, m *domain.Message) (bool, error) {
			if m.Deleted || m.Sender != sender || m.Body != body {
				return true, nil
			}
			key, deleted = k, m
			return false, nil
		})
		if err != nil {
			return err
		}
		if deleted == nil {
			return repository.ErrNotFound
		}
		deleted.Deleted = true
		deleted.DeletedAt = &at
		deleted.DeletedBy = &sender
		if err := setJSON(txn, key, deleted); err != nil {
			return err
		}
		return loadReadState(txn, deleted)
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// MarkRead flips the given messages. Ids outside the session are ignored.
func (r *SessionRepo) MarkRead(_ context.Context, sessionID string, ids []string, at time.Time) (int, error) {
	defer r.lock(sessionID)()

	var found []string
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range lo.Uniq(ids) {
			key, err := messages.locate(txn, sessionID, id)
			if err != nil {
				return err
			}
			if key != nil {
				found = append(found, id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := r.setRead(sessionID, found, at); err != nil {
		return 0, err
	}
	return len(found), nil
}

func (r *SessionRepo) MarkAllRead(_ context.Context, sessionID string, reader domain.ParticipantID, at time.Time) (int, error) {
	defer r.lock(sessionID)()

	var pending []string
	err := r.db.View(func(txn *badger.Txn) error {
		return r.scanUnread(txn, sessionID, reader, func(id string) {
			pending = append(pending, id)
		})
	})
	if err != nil {
		return 0, err
	}
	if err := r.setRead(sessionID, pending, at); err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (r *SessionRepo) CountUnread(_ context.Context, sessionID string, reader domain.ParticipantID) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return r.scanUnread(txn, sessionID, reader, func(string) { count++ })
	})
	return count, err
}

// scanUnread calls fn with every message of the session that reader has not read yet.
func (r *SessionRepo) scanUnread(txn *badger.Txn, sessionID string, reader domain.ParticipantID, fn func(id string)) error {
	return messages.scan(txn, sessionID, nil, func(_ []byte, m *domain.Message) (bool, error) {
		if m.Sender == reader {
			return true, nil
		}
		read, err := isRead(txn, sessionID, m.ID)
		if err != nil {
			return false, err
		}
		if !read {
			fn(m.ID)
		}
		return true, nil
	})
}

// setRead writes one small read marker per message. The whole set is written while the
// session lock is held; a set too large for one transaction is committed in batches.
func (r *SessionRepo) setRead(sessionID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	value, err := at.MarshalBinary()
	if err != nil {
		return err
	}

	txn := r.db.NewTransaction(true)
	defer func() { txn.Discard() }()
	for _, id := range ids {
		err := txn.Set(readKey(sessionID, id), value)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = r.db.NewTransaction(true)
			err = txn.Set(readKey(sessionID, id), value)
		}
		if err != nil {
			return err
		}
	}
	return txn.Commit()
}

func isRead(txn *badger.Txn, sessionID, id string) (bool, error) {
	_, err := txn.Get(readKey(sessionID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// loadReadState copies the read marker of m, if any, onto m.
func loadReadState(txn *badger.Txn, m *domain.Message) error {
	item, err := txn.Get(readKey(m.SessionID, m.ID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var at time.Time
	if err := item.Value(at.UnmarshalBinary); err != nil {
		return err
	}
	m.Read = true
	m.ReadAt = &at
	return nil
}
