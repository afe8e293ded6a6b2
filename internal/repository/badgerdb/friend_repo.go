package badgerdb

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vedran77/relay/internal/domain"
)

type FriendRepo struct {
	db *badger.DB
}

func NewFriendRepo(db *badger.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

func friendKey(a, b domain.ParticipantID) []byte {
	return []byte(fmt.Sprintf("friend:%s:%s", a, b))
}

func (r *FriendRepo) Add(_ context.Context, a, b domain.ParticipantID, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, edge := range []domain.FriendEdge{
			{Participant: a, Friend: b, CreatedAt: at},
			{Participant: b, Friend: a, CreatedAt: at},
		} {
			key := friendKey(edge.Participant, edge.Friend)
			existing, err := getJSON[domain.FriendEdge](txn, key)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := setJSON(txn, key, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *FriendRepo) List(_ context.Context, id domain.ParticipantID) ([]domain.FriendEdge, error) {
	var edges []domain.FriendEdge
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("friend:%s:", id))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edge, err := getJSON[domain.FriendEdge](txn, it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			if edge != nil {
				edges = append(edges, *edge)
			}
		}
		return nil
	})
	return edges, err
}
