package domain

import (
	"time"
)

type Session struct {
	ID            string           `json:"session_id"`
	Participants  [2]ParticipantID `json:"participants"`
	CreatedAt     time.Time        `json:"created_at"`
	LastMessageAt time.Time        `json:"last_message_at"`
	LastMessageID string           `json:"last_message_id,omitempty"`
	LastMessage   string           `json:"last_message,omitempty"`
	LastSender    ParticipantID    `json:"last_sender,omitempty"`
	MessageCount  int64            `json:"message_count"`
}

// SessionID derives the canonical, order-independent id of a two-party session.
func SessionID(a, b ParticipantID) string {
	if a > b {
		a, b = b, a
	}
	return string(a) + SessionSeparator + string(b)
}

// NewSession returns an empty session for the pair, participants in canonical order.
func NewSession(a, b ParticipantID, now time.Time) *Session {
	if a > b {
		a, b = b, a
	}
	return &Session{
		ID:            SessionID(a, b),
		Participants:  [2]ParticipantID{a, b},
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

func (s *Session) HasParticipant(p ParticipantID) bool {
	return s.Participants[0] == p || s.Participants[1] == p
}

// Peer returns the other participant of the session.
func (s *Session) Peer(p ParticipantID) ParticipantID {
	if s.Participants[0] == p {
		return s.Participants[1]
	}
	return s.Participants[0]
}

// RecordMessage applies the metadata update that accompanies an append.
// The preview follows the newest message by (timestamp, id), whatever the commit order.
func (s *Session) RecordMessage(id string, sender ParticipantID, body string, at time.Time) {
	if s.MessageCount == 0 || IsNewer(at, id, s.LastMessageAt, s.LastMessageID) {
		s.LastMessageAt = at
		s.LastMessageID = id
		s.LastMessage = Preview(body)
		s.LastSender = sender
	}
	s.MessageCount++
}

// IsNewer reports whether (at, id) sorts after (lastAt, lastID) in ledger order.
func IsNewer(at time.Time, id string, lastAt time.Time, lastID string) bool {
	if c := at.Compare(lastAt); c != 0 {
		return c > 0
	}
	return id > lastID
}
