package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/repository"
)

// NewStore wires the postgres repositories onto one pool.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Participants: NewParticipantRepo(pool),
		Friends:      NewFriendRepo(pool),
		Sessions:     NewSessionRepo(pool),
		Groups:       NewGroupRepo(pool),
	}
}
