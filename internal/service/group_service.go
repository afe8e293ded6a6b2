package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/pkg/validator"
)

// GroupService is the ledger of groups. Group messages carry no read state.
type GroupService struct {
	groups  repository.GroupRepository
	events  publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGroupService(groups repository.GroupRepository, bus realtime.Bus, log *slog.Logger, m *metrics.Metrics) *GroupService {
	return &GroupService{
		groups:  groups,
		events:  publisher{bus: bus, log: log, metrics: m},
		metrics: m,
		now:     clock,
	}
}

func (s *GroupService) Send(ctx context.Context, groupID string, sender domain.ParticipantID, body string) (*domain.GroupMessage, error) {
	if _, err := s.groupFor(ctx, groupID, sender); err != nil {
		return nil, err
	}
	if errs := validator.ValidateBody(body); errs.HasErrors() {
		return nil, errs
	}

	msg := &domain.GroupMessage{
		ID:        newMessageID(),
		GroupID:   groupID,
		Sender:    sender,
		Body:      strings.TrimSpace(body),
		Timestamp: s.now(),
	}
	if _, err := s.groups.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("appending group message: %w", err)
	}
	s.metrics.MessagesAppended.WithLabelValues(metrics.KindGroup).Inc()

	s.events.publish(groupID, realtime.EventGroupMessageCreated, realtime.GroupMessageCreatedPayload{
		GroupID:   groupID,
		MessageID: msg.ID,
		Sender:    sender,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
	return msg, nil
}

func (s *GroupService) Page(ctx context.Context, groupID string, limit int, cursor *string) (*domain.Page[domain.GroupMessage], error) {
	if errs := validator.ValidateLimit(limit, MaxPageLimit); errs.HasErrors() {
		return nil, errs
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	desc, err := s.groups.ListMessages(ctx, groupID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return newPage(desc, limit, func(m domain.GroupMessage) string { return m.ID }, domain.GroupMessage.Redacted), nil
}

func (s *GroupService) SoftDelete(ctx context.Context, groupID string, requester domain.ParticipantID, bodyMatch string) (*domain.GroupMessage, error) {
	if _, err := s.groupFor(ctx, groupID, requester); err != nil {
		return nil, err
	}

	msg, err := s.groups.SoftDeleteLatest(ctx, groupID, requester, strings.TrimSpace(bodyMatch), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deleting group message: %w", err)
	}
	s.metrics.MessagesDeleted.WithLabelValues(metrics.KindGroup).Inc()

	s.events.publish(groupID, realtime.EventGroupMessageDeleted, realtime.GroupMessageDeletedPayload{
		GroupID:   groupID,
		MessageID: msg.ID,
		Sender:    requester,
	})
	return msg, nil
}

func (s *GroupService) groupFor(ctx context.Context, groupID string, p domain.ParticipantID) (*domain.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if !group.HasMember(p) {
		return nil, ErrNotGroupMember
	}
	return group, nil
}
