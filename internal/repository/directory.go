//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package repository

import (
	"context"

	"github.com/vedran77/relay/internal/domain"
)

// ParticipantDirectory answers existence lookups against the external participant store.
type ParticipantDirectory interface {
	Exists(ctx context.Context, id domain.ParticipantID) (bool, error)
}
