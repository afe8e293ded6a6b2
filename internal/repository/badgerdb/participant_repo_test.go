package badgerdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

func TestParticipantRepo(t *testing.T) {
	req := require.New(t)
	repo := NewParticipantRepo(openTestDB(t))
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "alice")
	req.NoError(err)
	req.False(exists)

	req.NoError(repo.Create(ctx, &domain.Participant{ID: "alice", CreatedAt: time.Now()}))
	req.ErrorIs(repo.Create(ctx, &domain.Participant{ID: "alice", CreatedAt: time.Now()}), repository.ErrAlreadyExists)

	exists, err = repo.Exists(ctx, "alice")
	req.NoError(err)
	req.True(exists)
}

func TestFriendRepo_AddIsMutual(t *testing.T) {
	req := require.New(t)
	repo := NewFriendRepo(openTestDB(t))
	ctx := context.Background()

	req.NoError(repo.Add(ctx, "alice", "bob", time.Now()))
	req.NoError(repo.Add(ctx, "carol", "alice", time.Now()))
	req.NoError(repo.Add(ctx, "alice", "bob", time.Now()))

	edges, err := repo.List(ctx, "alice")
	req.NoError(err)
	req.Len(edges, 2)
	req.Equal(domain.ParticipantID("bob"), edges[0].Friend)
	req.Equal(domain.ParticipantID("carol"), edges[1].Friend)

	edges, err = repo.List(ctx, "bob")
	req.NoError(err)
	req.Len(edges, 1)
	req.Equal(domain.ParticipantID("alice"), edges[0].Friend)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("session:a_b")
	require.Len(t, k.locks, 1)
	unlock()
	require.Empty(t, k.locks)
}
