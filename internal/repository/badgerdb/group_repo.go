package badgerdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

var groupMessages = ledger[domain.GroupMessage]{entryPrefix: "gmsg", indexPrefix: "gmsgid"}

type GroupRepo struct {
	db    *badger.DB
	locks *keyedMutex
}

func NewGroupRepo(db *badger.DB, locks *keyedMutex) *GroupRepo {
	return &GroupRepo{db: db, locks: locks}
}

func groupKey(id string) []byte {
	return []byte("group:" + id)
}

func memberKey(p domain.ParticipantID, groupID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", p, groupID))
}

func (r *GroupRepo) lock(id string) func() {
	return r.locks.Lock("group:" + id)
}

func (r *GroupRepo) Create(_ context.Context, g *domain.Group) error {
	defer r.lock(g.ID)()

	return r.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[domain.Group](txn, groupKey(g.ID))
		if err != nil {
			return err
		}
		if existing != nil {
			return repository.ErrAlreadyExists
		}
		if err := setJSON(txn, groupKey(g.ID), g); err != nil {
			return err
		}
		for _, m := range g.Members {
			if err := txn.Set(memberKey(m, g.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GroupRepo) GetByID(_ context.Context, id string) (*domain.Group, error) {
	var g *domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		g, err = getJSON[domain.Group](txn, groupKey(id))
		return err
	})
	return g, err
}

func (r *GroupRepo) ListByMember(_ context.Context, id domain.ParticipantID) ([]domain.Group, error) {
	var groups []domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:%s:", id))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		for _, gid := range ids {
			g, err := getJSON[domain.Group](txn, groupKey(gid))
			if err != nil {
				return err
			}
			if g != nil {
				groups = append(groups, *g)
			}
		}
		return nil
	})
	slices.SortStableFunc(groups, func(a, b domain.Group) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	return groups, err
}

func (r *GroupRepo) AppendMessage(_ context.Context, msg *domain.GroupMessage) (*domain.Group, error) {
	defer r.lock(msg.GroupID)()

	var group *domain.Group
	err := r.db.Update(func(txn *badger.Txn) error {
		g, err := getJSON[domain.Group](txn, groupKey(msg.GroupID))
		if err != nil {
			return err
		}
		if g == nil {
			return repository.ErrNotFound
		}
		g.RecordMessage(msg.ID, msg.Sender, msg.Body, msg.Timestamp)
		if err := setJSON(txn, groupKey(g.ID), g); err != nil {
			return err
		}
		if err := groupMessages.put(txn, msg.GroupID, msg.Timestamp, msg.ID, msg); err != nil {
			return err
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (r *GroupRepo) ListMessages(_ context.Context, groupID string, cursor *string, limit int) ([]domain.GroupMessage, error) {
	var out []domain.GroupMessage
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = groupMessages.list(txn, groupID, cursor, limit)
		return err
	})
	return out, err
}

func (r *GroupRepo) SoftDeleteLatest(_ context.Context, groupID string, sender domain.ParticipantID, body string, at time.Time) (*domain.GroupMessage, error) {
	defer r.lock(groupID)()

	var deleted *domain.GroupMessage
	err := r.db.Update(func(txn *badger.Txn) error {
		var key []byte
		err := groupMessages.scan(txn, groupID, nil, func(k []byte, m *domain.GroupMessage) (bool, error) {
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
		return setJSON(txn, key, deleted)
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
