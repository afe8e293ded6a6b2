package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO participants (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		string(p.ID), p.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrAlreadyExists
	}
	return nil
}

func (r *ParticipantRepo) Exists(ctx context.Context, id domain.ParticipantID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, string(id)).Scan(&exists)
	return exists, err
}
