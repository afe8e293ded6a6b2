package domain

import (
	"time"
)

// FriendEdge is one directed half of a mutual friendship.
type FriendEdge struct {
	Participant ParticipantID `json:"participant"`
	Friend      ParticipantID `json:"friend"`
	CreatedAt   time.Time     `json:"created_at"`
}
