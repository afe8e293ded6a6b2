package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/internal/repository"
	"golang.org/x/sync/errgroup"
)

// unreadFanout bounds the concurrent counts of UnreadCounts.
const unreadFanout = 8

// UnreadService recomputes unread counts from the ledger and flips read state.
type UnreadService struct {
	sessions  repository.SessionRepository
	friends   repository.FriendRepository
	directory repository.ParticipantDirectory
	events    publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewUnreadService(
	sessions repository.SessionRepository,
	friends repository.FriendRepository,
	directory repository.ParticipantDirectory,
	bus realtime.Bus,
	log *slog.Logger,
	m *metrics.Metrics,
) *UnreadService {
	return &UnreadService{
		sessions:  sessions,
		friends:   friends,
		directory: directory,
		events:    publisher{bus: bus, log: log, metrics: m},
		metrics:   m,
		now:       clock,
	}
}

// UnreadCount is the number of unread messages peer sent to reader. No session means zero.
func (s *UnreadService) UnreadCount(ctx context.Context, reader, peer domain.ParticipantID) (int, error) {
	if reader == peer {
		return 0, ErrSameParticipant
	}
	return s.sessions.CountUnread(ctx, domain.SessionID(reader, peer), reader)
}

// UnreadCounts returns the unread count of every friend of reader, keyed by friend.
func (s *UnreadService) UnreadCounts(ctx context.Context, reader domain.ParticipantID) (map[domain.ParticipantID]int, error) {
	ok, err := s.directory.Exists(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("checking participant: %w", err)
	}
	if !ok {
		return nil, ErrParticipantNotFound
	}

	edges, err := s.friends.List(ctx, reader)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	counts := make(map[domain.ParticipantID]int, len(edges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(unreadFanout)
	for _, edge := range edges {
		g.Go(func() error {
			n, err := s.UnreadCount(gctx, reader, edge.Friend)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[edge.Friend] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// MarkRead flips messageIDs, or every message reader has not seen when none are given.
func (s *UnreadService) MarkRead(ctx context.Context, sessionID string, reader domain.ParticipantID, messageIDs []string) (int, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, ErrSessionNotFound
	}
	if !session.HasParticipant(reader) {
		return 0, ErrNotParticipant
	}

	var updated int
	if len(messageIDs) > 0 {
		updated, err = s.sessions.MarkRead(ctx, sessionID, messageIDs, s.now())
	} else {
		updated, err = s.sessions.MarkAllRead(ctx, sessionID, reader, s.now())
	}
	if err != nil {
		return 0, fmt.Errorf("marking read: %w", err)
	}
	s.metrics.MessagesRead.Add(float64(updated))

	s.events.publish(sessionID, realtime.EventMessagesRead, realtime.MessagesReadPayload{
		SessionID: sessionID,
		Reader:    reader,
		Count:     updated,
	})
	return updated, nil
}
