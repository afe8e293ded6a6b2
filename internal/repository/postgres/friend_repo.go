package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/domain"
)

type FriendRepo struct {
	pool *pgxpool.Pool
}

func NewFriendRepo(pool *pgxpool.Pool) *FriendRepo {
	return &FriendRepo{pool: pool}
}

func (r *FriendRepo) Add(ctx context.Context, a, b domain.ParticipantID, at time.Time) error {
	query := `
		INSERT INTO friends (participant_id, friend_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id, friend_id) DO NOTHING`

	batch := &pgx.Batch{}
	batch.Queue(query, string(a), string(b), at)
	batch.Queue(query, string(b), string(a), at)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *FriendRepo) List(ctx context.Context, id domain.ParticipantID) ([]domain.FriendEdge, error) {
	query := `
		SELECT participant_id, friend_id, created_at
		FROM friends
		WHERE participant_id = $1
		ORDER BY friend_id`

	rows, err := r.pool.Query(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.FriendEdge
	for rows.Next() {
		var participant, friend string
		var edge domain.FriendEdge
		if err := rows.Scan(&participant, &friend, &edge.CreatedAt); err != nil {
			return nil, err
		}
		edge.Participant = domain.ParticipantID(participant)
		edge.Friend = domain.ParticipantID(friend)
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
