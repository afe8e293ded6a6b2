package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

const (
	groupColumns        = `g.id, g.name, g.creator, g.created_at, g.last_message_at, g.last_message_id, g.last_message, g.last_sender, g.message_count`
	groupMessageColumns = `id, group_id, sender, body, created_at, deleted, deleted_at, deleted_by`
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO chat_groups (id, name, creator, created_at, last_message_at, last_message, last_sender, message_count)
			VALUES ($1, $2, $3, $4, $5, '', '', 0)`
		if _, err := tx.Exec(ctx, insert, g.ID, g.Name, string(g.Creator), g.CreatedAt, g.LastMessageAt); err != nil {
			return err
		}

		members := lo.Map(g.Members, func(m domain.ParticipantID, _ int) string { return string(m) })
		_, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, participant_id) SELECT $1, unnest($2::text[])`,
			g.ID, members,
		)
		return err
	})
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `,
			COALESCE(array_agg(m.participant_id ORDER BY m.participant_id) FILTER (WHERE m.participant_id IS NOT NULL), '{}')
		FROM chat_groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		WHERE g.id = $1
		GROUP BY g.id`
	g, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (r *GroupRepo) ListByMember(ctx context.Context, id domain.ParticipantID) ([]domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `,
			COALESCE(array_agg(m.participant_id ORDER BY m.participant_id), '{}')
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE g.id IN (SELECT group_id FROM group_members WHERE participant_id = $1)
		GROUP BY g.id
		ORDER BY g.last_message_at DESC`

	rows, err := r.pool.Query(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (r *GroupRepo) AppendMessage(ctx context.Context, msg *domain.GroupMessage) (*domain.Group, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		update := `
			UPDATE chat_groups
			SET last_message_at = CASE WHEN ` + advancesLast + ` THEN $2 ELSE last_message_at END,
				last_message_id = CASE WHEN ` + advancesLast + ` THEN $5 ELSE last_message_id END,
				last_message = CASE WHEN ` + advancesLast + ` THEN $3 ELSE last_message END,
				last_sender = CASE WHEN ` + advancesLast + ` THEN $4 ELSE last_sender END,
				message_count = message_count + 1
			WHERE id = $1`
		tag, err := tx.Exec(ctx, update, msg.GroupID, msg.Timestamp, domain.Preview(msg.Body), string(msg.Sender), msg.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		insert := `
			INSERT INTO group_messages (id, group_id, sender, body, created_at, deleted)
			VALUES ($1, $2, $3, $4, $5, FALSE)`
		_, err = tx.Exec(ctx, insert, msg.ID, msg.GroupID, string(msg.Sender), msg.Body, msg.Timestamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, msg.GroupID)
}

func (r *GroupRepo) ListMessages(ctx context.Context, groupID string, cursor *string, limit int) ([]domain.GroupMessage, error) {
	var query string
	var args []any

	var at time.Time
	var cursorID string
	found := false
	if cursor != nil {
		err := r.pool.QueryRow(ctx,
			`SELECT created_at, id FROM group_messages WHERE group_id = $1 AND id = $2`,
			groupID, *cursor,
		).Scan(&at, &cursorID)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
	}

	if found {
		query = `
			SELECT ` + groupMessageColumns + `
			FROM group_messages
			WHERE group_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`
		args = []any{groupID, at, cursorID, limit}
	} else {
		query = `
			SELECT ` + groupMessageColumns + `
			FROM group_messages
			WHERE group_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		args = []any{groupID, limit}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.GroupMessage
	for rows.Next() {
		msg, err := scanGroupMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *GroupRepo) SoftDeleteLatest(ctx context.Context, groupID string, sender domain.ParticipantID, body string, at time.Time) (*domain.GroupMessage, error) {
	query := `
		UPDATE group_messages
		SET deleted = TRUE, deleted_at = $4, deleted_by = $2
		WHERE NOT deleted AND id = (
			SELECT id FROM group_messages
			WHERE group_id = $1 AND sender = $2 AND body = $3 AND NOT deleted
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING ` + groupMessageColumns
	pending := `
		SELECT EXISTS (
			SELECT 1 FROM group_messages
			WHERE group_id = $1 AND sender = $2 AND body = $3 AND NOT deleted
		)`
	for {
		msg, err := scanGroupMessage(r.pool.QueryRow(ctx, query, groupID, string(sender), body, at))
		if !errors.Is(err, pgx.ErrNoRows) {
			return msg, err
		}
		var more bool
		if err := r.pool.QueryRow(ctx, pending, groupID, string(sender), body).Scan(&more); err != nil {
			return nil, err
		}
		if !more {
			return nil, repository.ErrNotFound
		}
	}
}

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var g domain.Group
	var creator, lastSender string
	var members []string
	err := row.Scan(
		&g.ID, &g.Name, &creator, &g.CreatedAt, &g.LastMessageAt, &g.LastMessageID,
		&g.LastMessage, &lastSender, &g.MessageCount, &members,
	)
	if err != nil {
		return nil, err
	}
	g.Creator = domain.ParticipantID(creator)
	g.LastSender = domain.ParticipantID(lastSender)
	g.Members = lo.Map(members, func(m string, _ int) domain.ParticipantID { return domain.ParticipantID(m) })
	return &g, nil
}

func scanGroupMessage(row pgx.Row) (*domain.GroupMessage, error) {
	var msg domain.GroupMessage
	var sender string
	var deletedBy *string
	err := row.Scan(
		&msg.ID, &msg.GroupID, &sender, &msg.Body, &msg.Timestamp,
		&msg.Deleted, &msg.DeletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}
	msg.Sender = domain.ParticipantID(sender)
	if deletedBy != nil {
		by := domain.ParticipantID(*deletedBy)
		msg.DeletedBy = &by
	}
	return &msg, nil
}
