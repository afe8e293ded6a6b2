package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/pkg/validator"
)

// SessionService owns conversation identity: two-party sessions and groups.
type SessionService struct {
	sessions  repository.SessionRepository
	groups    repository.GroupRepository
	directory repository.ParticipantDirectory
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	verifyMembers bool
}

func NewSessionService(
	sessions repository.SessionRepository,
	groups repository.GroupRepository,
	directory repository.ParticipantDirectory,
	log *slog.Logger,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		groups:    groups,
		directory: directory,
		log:       log,
		metrics:   m,
		now:       clock,
	}
}

// SetVerifyMembers makes CreateGroup reject members missing from the directory.
func (s *SessionService) SetVerifyMembers(v bool) {
	s.verifyMembers = v
}

// GetOrCreate returns the session of the pair, creating it on first use.
// The bool reports whether this call created it.
func (s *SessionService) GetOrCreate(ctx context.Context, u1, u2 domain.ParticipantID) (*domain.Session, bool, error) {
	if u1 == u2 {
		return nil, false, ErrSameParticipant
	}
	for _, p := range []domain.ParticipantID{u1, u2} {
		if err := s.requireParticipant(ctx, p); err != nil {
			return nil, false, err
		}
	}

	session := domain.NewSession(u1, u2, s.now())
	created, err := s.sessions.CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, false, fmt.Errorf("creating session: %w", err)
	}
	if created {
		s.metrics.SessionsCreated.Inc()
		s.log.Debug("session created", "session_id", session.ID)
		return session, true, nil
	}

	existing, err := s.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, ErrSessionNotFound
	}
	return existing, false, nil
}

// ListSessions returns the sessions of p, most recently active first.
func (s *SessionService) ListSessions(ctx context.Context, p domain.ParticipantID) ([]domain.Session, error) {
	if err := s.requireParticipant(ctx, p); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByParticipant(ctx, p)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// CreateGroup persists a group whose members are the creator plus memberIDs.
func (s *SessionService) CreateGroup(ctx context.Context, name string, creator domain.ParticipantID, memberIDs []domain.ParticipantID) (*domain.Group, error) {
	if errs := validator.ValidateGroup(name, memberIDs); errs.HasErrors() {
		return nil, errs
	}

	members := lo.Uniq(append([]domain.ParticipantID{creator}, memberIDs...))
	if s.verifyMembers {
		for _, m := range members {
			if err := s.requireParticipant(ctx, m); err != nil {
				return nil, fmt.Errorf("%w: %s", err, m)
			}
		}
	}

	now := s.now()
	group := &domain.Group{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(name),
		Creator:       creator,
		Members:       members,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	s.metrics.GroupsCreated.Inc()
	return group, nil
}

func (s *SessionService) ListGroups(ctx context.Context, p domain.ParticipantID) ([]domain.Group, error) {
	groups, err := s.groups.ListByMember(ctx, p)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

func (s *SessionService) requireParticipant(ctx context.Context, p domain.ParticipantID) error {
	ok, err := s.directory.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("checking participant: %w", err)
	}
	if !ok {
		return ErrParticipantNotFound
	}
	return nil
}

// CanJoin reports whether p belongs to the session or group whose id is room.
func (s *SessionService) CanJoin(ctx context.Context, p domain.ParticipantID, room string) (bool, error) {
	session, err := s.sessions.GetByID(ctx, room)
	if err != nil {
		return false, fmt.Errorf("loading session: %w", err)
	}
	if session != nil {
		return session.HasParticipant(p), nil
	}
	group, err := s.groups.GetByID(ctx, room)
	if err != nil {
		return false, fmt.Errorf("loading group: %w", err)
	}
	return group != nil && group.HasMember(p), nil
}
