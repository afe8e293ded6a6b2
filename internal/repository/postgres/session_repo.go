package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

const (
	sessionColumns = `id, participant_a, participant_b, created_at, last_message_at, last_message_id, last_message, last_sender, message_count`
	messageColumns = `id, session_id, sender, body, created_at, read, read_at, deleted, deleted_at, deleted_by`
)

// advancesLast holds when the appended message ($2 timestamp, $5 id) sorts after the
// current last message. SET expressions see the row as it was before the update.
const advancesLast = `(message_count = 0 OR ($2::timestamptz, $5::text) > (last_message_at, last_message_id))`

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) CreateIfAbsent(ctx context.Context, s *domain.Session) (bool, error) {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query,
		s.ID, string(s.Participants[0]), string(s.Participants[1]), s.CreatedAt, s.LastMessageAt,
		s.LastMessageID, s.LastMessage, string(s.LastSender), s.MessageCount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SessionRepo) ListByParticipant(ctx context.Context, id domain.ParticipantID) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC`

	rows, err := r.pool.Query(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Session, error) {
	var session *domain.Session
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// The row lock taken here serializes concurrent appends on the session.
		update := `
			UPDATE sessions
			SET last_message_at = CASE WHEN ` + advancesLast + ` THEN $2 ELSE last_message_at END,
				last_message_id = CASE WHEN ` + advancesLast + ` THEN $5 ELSE last_message_id END,
				last_message = CASE WHEN ` + advancesLast + ` THEN $3 ELSE last_message END,
				last_sender = CASE WHEN ` + advancesLast + ` THEN $4 ELSE last_sender END,
				message_count = message_count + 1
			WHERE id = $1
			RETURNING ` + sessionColumns
		s, err := scanSession(tx.QueryRow(ctx, update,
			msg.SessionID, msg.Timestamp, domain.Preview(msg.Body), string(msg.Sender), msg.ID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}

		insert := `
			INSERT INTO messages (id, session_id, sender, body, created_at, read, deleted)
			VALUES ($1, $2, $3, $4, $5, FALSE, FALSE)`
		if _, err := tx.Exec(ctx, insert, msg.ID, msg.SessionID, string(msg.Sender), msg.Body, msg.Timestamp); err != nil {
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

func (r *SessionRepo) ListMessages(ctx context.Context, sessionID string, cursor *string, limit int) ([]domain.Message, error) {
	var query string
	var args []any

	at, id, found, err := r.cursorPosition(ctx, sessionID, cursor)
	if err != nil {
		return nil, err
	}

	if found {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE session_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`
		args = []any{sessionID, at, id, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		args = []any{sessionID, limit}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// cursorPosition resolves a cursor id to its sort key. Unknown cursors are ignored.
func (r *SessionRepo) cursorPosition(ctx context.Context, sessionID string, cursor *string) (time.Time, string, bool, error) {
	if cursor == nil {
		return time.Time{}, "", false, nil
	}
	var at time.Time
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT created_at, id FROM messages WHERE session_id = $1 AND id = $2`,
		sessionID, *cursor,
	).Scan(&at, &id)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, "", false, nil
	}
	if err != nil {
		return time.Time{}, "", false, err
	}
	return at, id, true, nil
}

// SoftDeleteLatest re-checks NOT deleted after the row lock: a concurrent delete of the
// same row makes the update miss, and the next match is tried instead.
func (r *SessionRepo) SoftDeleteLatest(ctx context.Context, sessionID string, sender domain.ParticipantID, body string, at time.Time) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET deleted = TRUE, deleted_at = $4, deleted_by = $2
		WHERE NOT deleted AND id = (
			SELECT id FROM messages
			WHERE session_id = $1 AND sender = $2 AND body = $3 AND NOT deleted
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING ` + messageColumns
	pending := `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE session_id = $1 AND sender = $2 AND body = $3 AND NOT deleted
		)`
	for {
		msg, err := scanMessage(r.pool.QueryRow(ctx, query, sessionID, string(sender), body, at))
		if !errors.Is(err, pgx.ErrNoRows) {
			return msg, err
		}
		var more bool
		if err := r.pool.QueryRow(ctx, pending, sessionID, string(sender), body).Scan(&more); err != nil {
			return nil, err
		}
		if !more {
			return nil, repository.ErrNotFound
		}
	}
}

func (r *SessionRepo) MarkRead(ctx context.Context, sessionID string, ids []string, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE, read_at = $3 WHERE session_id = $1 AND id = ANY($2)`,
		sessionID, ids, at,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepo) MarkAllRead(ctx context.Context, sessionID string, reader domain.ParticipantID, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE, read_at = $3 WHERE session_id = $1 AND NOT read AND sender <> $2`,
		sessionID, string(reader), at,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepo) CountUnread(ctx context.Context, sessionID string, reader domain.ParticipantID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE session_id = $1 AND NOT read AND sender <> $2`,
		sessionID, string(reader),
	).Scan(&count)
	return count, err
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var a, b, lastSender string
	err := row.Scan(
		&s.ID, &a, &b, &s.CreatedAt, &s.LastMessageAt, &s.LastMessageID,
		&s.LastMessage, &lastSender, &s.MessageCount,
	)
	if err != nil {
		return nil, err
	}
	s.Participants = [2]domain.ParticipantID{domain.ParticipantID(a), domain.ParticipantID(b)}
	s.LastSender = domain.ParticipantID(lastSender)
	return &s, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var sender string
	var deletedBy *string
	err := row.Scan(
		&msg.ID, &msg.SessionID, &sender, &msg.Body, &msg.Timestamp,
		&msg.Read, &msg.ReadAt, &msg.Deleted, &msg.DeletedAt, &deletedBy,
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
