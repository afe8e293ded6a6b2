package domain

import (
	"time"
)

const (
	MaxBodyLength    = 5000
	MaxPreviewLength = 100
)

type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Sender    ParticipantID  `json:"sender"`
	Body      string         `json:"body"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	Deleted   bool           `json:"deleted"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy *ParticipantID `json:"deleted_by,omitempty"`
}

// Redacted hides the text of a soft-deleted message while keeping its id and position.
func (m Message) Redacted() Message {
	if m.Deleted {
		m.Body = ""
	}
	return m
}

type GroupMessage struct {
	ID        string         `json:"id"`
	GroupID   string         `json:"group_id"`
	Sender    ParticipantID  `json:"sender"`
	Body      string         `json:"body"`
	Timestamp time.Time      `json:"timestamp"`
	Deleted   bool           `json:"deleted"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy *ParticipantID `json:"deleted_by,omitempty"`
}

func (m GroupMessage) Redacted() GroupMessage {
	if m.Deleted {
		m.Body = ""
	}
	return m
}

// Page is one step of a backward walk through a ledger, oldest first.
type Page[T any] struct {
	Messages   []T     `json:"messages"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Preview truncates a body to the session preview length, counting runes.
func Preview(body string) string {
	r := []rune(body)
	if len(r) <= MaxPreviewLength {
		return body
	}
	return string(r[:MaxPreviewLength])
}
