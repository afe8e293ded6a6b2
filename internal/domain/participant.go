package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// SessionSeparator joins the two canonical participant ids of a session.
const SessionSeparator = "_"

var participantRegex = regexp.MustCompile(`^[A-Za-z0-9.@-]{1,64}$`)

var ErrInvalidParticipant = errors.New("invalid participant id")

// ParticipantID is an opaque participant identifier, normalized once at the boundary.
type ParticipantID string

// NewParticipantID trims raw and checks it can be used inside session ids and store keys.
func NewParticipantID(raw string) (ParticipantID, error) {
	id := strings.TrimSpace(raw)
	if !participantRegex.MatchString(id) {
		return "", ErrInvalidParticipant
	}
	return ParticipantID(id), nil
}

func (p ParticipantID) String() string {
	return string(p)
}

type Participant struct {
	ID        ParticipantID `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
}
