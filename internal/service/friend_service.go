package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

// FriendService keeps the contact list unread counts are computed over.
type FriendService struct {
	friends      repository.FriendRepository
	participants repository.ParticipantRepository
	now          func() time.Time
}

func NewFriendService(friends repository.FriendRepository, participants repository.ParticipantRepository) *FriendService {
	return &FriendService{friends: friends, participants: participants, now: clock}
}

// Register adds id to the participant directory.
func (s *FriendService) Register(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	p := &domain.Participant{ID: id, CreatedAt: s.now()}
	if err := s.participants.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("creating participant: %w", err)
	}
	return p, nil
}

// Add makes a and b friends of each other. Both must exist.
func (s *FriendService) Add(ctx context.Context, a, b domain.ParticipantID) error {
	if a == b {
		return ErrSameParticipant
	}
	for _, p := range []domain.ParticipantID{a, b} {
		ok, err := s.participants.Exists(ctx, p)
		if err != nil {
			return fmt.Errorf("checking participant: %w", err)
		}
		if !ok {
			return ErrParticipantNotFound
		}
	}
	if err := s.friends.Add(ctx, a, b, s.now()); err != nil {
		return fmt.Errorf("adding friend: %w", err)
	}
	return nil
}

func (s *FriendService) List(ctx context.Context, id domain.ParticipantID) ([]domain.ParticipantID, error) {
	ok, err := s.participants.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking participant: %w", err)
	}
	if !ok {
		return nil, ErrParticipantNotFound
	}
	edges, err := s.friends.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return lo.Map(edges, func(e domain.FriendEdge, _ int) domain.ParticipantID {
		return e.Friend
	}), nil
}
