package badgerdb

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type ParticipantRepo struct {
	db *badger.DB
}

func NewParticipantRepo(db *badger.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

func participantKey(id domain.ParticipantID) []byte {
	return []byte("participant:" + string(id))
}

func (r *ParticipantRepo) Create(_ context.Context, p *domain.Participant) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(participantKey(p.ID)); err == nil {
			return repository.ErrAlreadyExists
		}
		return setJSON(txn, participantKey(p.ID), p)
	})
}

func (r *ParticipantRepo) Exists(_ context.Context, id domain.ParticipantID) (bool, error) {
	exists := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(participantKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}
