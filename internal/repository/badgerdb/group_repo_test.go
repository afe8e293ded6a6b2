package badgerdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

func TestGroupRepo_CreateAndList(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepo(openTestDB(t), newKeyedMutex())
	ctx := context.Background()
	now := time.Now().UTC()

	g := &domain.Group{
		ID: uuid.NewString(), Name: "climbers", Creator: "alice",
		Members: []domain.ParticipantID{"alice", "bob", "carol"}, CreatedAt: now, LastMessageAt: now,
	}
	req.NoError(repo.Create(ctx, g))
	req.ErrorIs(repo.Create(ctx, g), repository.ErrAlreadyExists)

	stored, err := repo.GetByID(ctx, g.ID)
	req.NoError(err)
	req.Equal("climbers", stored.Name)
	req.ElementsMatch(g.Members, stored.Members)

	groups, err := repo.ListByMember(ctx, "carol")
	req.NoError(err)
	req.Len(groups, 1)

	groups, err = repo.ListByMember(ctx, "dave")
	req.NoError(err)
	req.Empty(groups)
}

func TestGroupRepo_Ledger(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepo(openTestDB(t), newKeyedMutex())
	ctx := context.Background()
	now := time.Now().UTC()

	g := &domain.Group{
		ID: uuid.NewString(), Name: "climbers", Creator: "alice",
		Members: []domain.ParticipantID{"alice", "bob"}, CreatedAt: now, LastMessageAt: now,
	}
	req.NoError(repo.Create(ctx, g))

	var sent []string
	for i, body := range []string{"one", "two", "two"} {
		msg := &domain.GroupMessage{
			ID: uuid.NewString(), GroupID: g.ID, Sender: "bob", Body: body,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		_, err := repo.AppendMessage(ctx, msg)
		req.NoError(err)
		sent = append(sent, msg.ID)
	}

	stored, err := repo.GetByID(ctx, g.ID)
	req.NoError(err)
	req.EqualValues(3, stored.MessageCount)
	req.Equal(domain.ParticipantID("bob"), stored.LastSender)

	page, err := repo.ListMessages(ctx, g.ID, nil, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal(sent[2], page[0].ID)

	deleted, err := repo.SoftDeleteLatest(ctx, g.ID, "bob", "two", now)
	req.NoError(err)
	req.Equal(sent[2], deleted.ID)

	_, err = repo.SoftDeleteLatest(ctx, g.ID, "alice", "two", now)
	req.ErrorIs(err, repository.ErrNotFound)

	_, err = repo.AppendMessage(ctx, &domain.GroupMessage{ID: uuid.NewString(), GroupID: "missing", Sender: "bob", Body: "x", Timestamp: now})
	req.ErrorIs(err, repository.ErrNotFound)
}
