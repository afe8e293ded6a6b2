package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/pkg/validator"
)

// MessageService is the ledger of two-party sessions.
type MessageService struct {
	sessions  repository.SessionRepository
	directory *SessionService
	events    publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewMessageService(sessions repository.SessionRepository, directory *SessionService, bus realtime.Bus, log *slog.Logger, m *metrics.Metrics) *MessageService {
	return &MessageService{
		sessions:  sessions,
		directory: directory,
		events:    publisher{bus: bus, log: log, metrics: m},
		metrics:   m,
		now:       clock,
	}
}

// Send appends body to the session and announces it.
func (s *MessageService) Send(ctx context.Context, sessionID string, sender domain.ParticipantID, body string) (*domain.Message, error) {
	session, err := s.sessionFor(ctx, sessionID, sender)
	if err != nil {
		return nil, err
	}
	if errs := validator.ValidateBody(body); errs.HasErrors() {
		return nil, errs
	}

	msg := &domain.Message{
		ID:        newMessageID(),
		SessionID: session.ID,
		Sender:    sender,
		Body:      strings.TrimSpace(body),
		Timestamp: s.now(),
	}
	if _, err := s.sessions.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("appending message: %w", err)
	}
	s.metrics.MessagesAppended.WithLabelValues(metrics.KindSession).Inc()

	s.events.publish(session.ID, realtime.EventMessageCreated, realtime.MessageCreatedPayload{
		SessionID: session.ID,
		MessageID: msg.ID,
		Sender:    sender,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
	s.events.publish(realtime.PersonalRoom(session.Peer(sender)), realtime.EventUnreadIncremented, realtime.UnreadIncrementedPayload{
		From:      sender,
		SessionID: session.ID,
	})
	return msg, nil
}

// SendTo resolves the session of the pair, creating it if needed, then sends.
func (s *MessageService) SendTo(ctx context.Context, sender, recipient domain.ParticipantID, body string) (*domain.Message, error) {
	if errs := validator.ValidateBody(body); errs.HasErrors() {
		return nil, errs
	}
	session, _, err := s.directory.GetOrCreate(ctx, sender, recipient)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, session.ID, sender, body)
}

// Page walks the history backward from cursor. Messages come back oldest first.
func (s *MessageService) Page(ctx context.Context, sessionID string, limit int, cursor *string) (*domain.Page[domain.Message], error) {
	if errs := validator.ValidateLimit(limit, MaxPageLimit); errs.HasErrors() {
		return nil, errs
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	desc, err := s.sessions.ListMessages(ctx, sessionID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return newPage(desc, limit, func(m domain.Message) string { return m.ID }, domain.Message.Redacted), nil
}

// SoftDelete marks the requester's newest message with exactly bodyMatch as deleted.
func (s *MessageService) SoftDelete(ctx context.Context, sessionID string, requester domain.ParticipantID, bodyMatch string) (*domain.Message, error) {
	if _, err := s.sessionFor(ctx, sessionID, requester); err != nil {
		return nil, err
	}

	msg, err := s.sessions.SoftDeleteLatest(ctx, sessionID, requester, strings.TrimSpace(bodyMatch), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	s.metrics.MessagesDeleted.WithLabelValues(metrics.KindSession).Inc()

	s.events.publish(sessionID, realtime.EventMessageDeleted, realtime.MessageDeletedPayload{
		SessionID: sessionID,
		MessageID: msg.ID,
		Sender:    requester,
	})
	return msg, nil
}

// sessionFor loads the session and checks p takes part in it.
func (s *MessageService) sessionFor(ctx context.Context, sessionID string, p domain.ParticipantID) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.HasParticipant(p) {
		return nil, ErrNotParticipant
	}
	return session, nil
}

// newPage turns a newest-first slice into an ascending page.
func newPage[T any](desc []T, limit int, id func(T) string, redact func(T) T) *domain.Page[T] {
	page := &domain.Page[T]{
		Messages: lo.Map(desc, func(m T, _ int) T { return redact(m) }),
		HasMore:  len(desc) == limit,
	}
	if len(desc) > 0 {
		next := id(desc[len(desc)-1])
		page.NextCursor = &next
	}
	slices.Reverse(page.Messages)
	return page
}
