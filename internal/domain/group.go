package domain

import (
	"slices"
	"time"
)

const MaxGroupNameLength = 50

type Group struct {
	ID            string          `json:"group_id"`
	Name          string          `json:"name"`
	Creator       ParticipantID   `json:"creator"`
	Members       []ParticipantID `json:"members"`
	CreatedAt     time.Time       `json:"created_at"`
	LastMessageAt time.Time       `json:"last_message_at"`
	LastMessageID string          `json:"last_message_id,omitempty"`
	LastMessage   string          `json:"last_message,omitempty"`
	LastSender    ParticipantID   `json:"last_sender,omitempty"`
	MessageCount  int64           `json:"message_count"`
}

func (g *Group) HasMember(p ParticipantID) bool {
	return slices.Contains(g.Members, p)
}

func (g *Group) RecordMessage(id string, sender ParticipantID, body string, at time.Time) {
	if g.MessageCount == 0 || IsNewer(at, id, g.LastMessageAt, g.LastMessageID) {
		g.LastMessageAt = at
		g.LastMessageID = id
		g.LastMessage = Preview(body)
		g.LastSender = sender
	}
	g.MessageCount++
}
