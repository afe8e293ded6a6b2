package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vedran77/relay/internal/domain"
)

// ErrNotFound is returned by mutations whose target session, group or message is absent.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating a record whose id is taken.
var ErrAlreadyExists = errors.New("already exists")

type ParticipantRepository interface {
	ParticipantDirectory
	Create(ctx context.Context, p *domain.Participant) error
}

type FriendRepository interface {
	// Add stores both directed edges of the pair.
	Add(ctx context.Context, a, b domain.ParticipantID, at time.Time) error
	List(ctx context.Context, id domain.ParticipantID) ([]domain.FriendEdge, error)
}

type SessionRepository interface {
	// CreateIfAbsent persists s unless a session with the same id exists.
	CreateIfAbsent(ctx context.Context, s *domain.Session) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByParticipant(ctx context.Context, id domain.ParticipantID) ([]domain.Session, error)

	// AppendMessage inserts msg and updates the session metadata in one transaction.
	AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Session, error)
	// ListMessages returns up to limit messages strictly older than cursor, newest first.
	ListMessages(ctx context.Context, sessionID string, cursor *string, limit int) ([]domain.Message, error)
	// SoftDeleteLatest marks the newest undeleted message of sender with exactly body as deleted.
	SoftDeleteLatest(ctx context.Context, sessionID string, sender domain.ParticipantID, body string, at time.Time) (*domain.Message, error)
	// MarkRead flips the given messages of the session; ids outside the session are ignored.
	MarkRead(ctx context.Context, sessionID string, ids []string, at time.Time) (int, error)
	// MarkAllRead flips every unread message of the session not sent by reader.
	MarkAllRead(ctx context.Context, sessionID string, reader domain.ParticipantID, at time.Time) (int, error)
	CountUnread(ctx context.Context, sessionID string, reader domain.ParticipantID) (int, error)
}

type GroupRepository interface {
	Create(ctx context.Context, g *domain.Group) error
	GetByID(ctx context.Context, id string) (*domain.Group, error)
	ListByMember(ctx context.Context, id domain.ParticipantID) ([]domain.Group, error)

	AppendMessage(ctx context.Context, msg *domain.GroupMessage) (*domain.Group, error)
	ListMessages(ctx context.Context, groupID string, cursor *string, limit int) ([]domain.GroupMessage, error)
	SoftDeleteLatest(ctx context.Context, groupID string, sender domain.ParticipantID, body string, at time.Time) (*domain.GroupMessage, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Participants ParticipantRepository
	Friends      FriendRepository
	Sessions     SessionRepository
	Groups       GroupRepository
}
