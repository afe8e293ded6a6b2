//go:generate go run go.uber.org/mock/mockgen -source=bus.go -destination=../mocks/mock_bus.go -package=mocks
package realtime

import (
	"errors"

	"github.com/vedran77/relay/internal/domain"
)

// ErrSaturated is returned by Publish when the event could not be queued without blocking.
var ErrSaturated = errors.New("realtime: bus saturated")

// Bus fans events out to the clients joined to a room.
// Publish must not block; delivery is best effort.
type Bus interface {
	Publish(room, eventType string, payload any) error
}

const personalRoomPrefix = "user:"

// PersonalRoom is the room every connection of a participant joins on connect.
func PersonalRoom(id domain.ParticipantID) string {
	return personalRoomPrefix + string(id)
}

// IsPersonalRoom reports whether room is a personal room and whose.
func IsPersonalRoom(room string) (domain.ParticipantID, bool) {
	if len(room) <= len(personalRoomPrefix) || room[:len(personalRoomPrefix)] != personalRoomPrefix {
		return "", false
	}
	return domain.ParticipantID(room[len(personalRoomPrefix):]), true
}
