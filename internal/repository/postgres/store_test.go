package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/database"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

// openTestStore connects to TEST_DATABASE_URL. Participant ids are suffixed so
// runs against a shared database do not collide.
func openTestStore(t *testing.T) (*repository.Store, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return NewStore(pool), uuid.NewString()[:8]
}

func TestSessionRepo_Ledger(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := domain.ParticipantID("alice-" + run)
	b := domain.ParticipantID("bob-" + run)
	s := domain.NewSession(a, b, now)

	created, err := store.Sessions.CreateIfAbsent(ctx, s)
	req.NoError(err)
	req.True(created)
	created, err = store.Sessions.CreateIfAbsent(ctx, s)
	req.NoError(err)
	req.False(created)

	var sent []string
	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			ID: uuid.Must(uuid.NewV7()).String(), SessionID: s.ID, Sender: s.Participants[i%2],
			Body: fmt.Sprintf("m%d", i), Timestamp: now.Add(time.Duration(i) * time.Millisecond),
		}
		_, err := store.Sessions.AppendMessage(ctx, msg)
		req.NoError(err)
		sent = append(sent, msg.ID)
	}

	page, err := store.Sessions.ListMessages(ctx, s.ID, nil, 3)
	req.NoError(err)
	req.Len(page, 3)
	req.Equal(sent[4], page[0].ID)

	cursor := page[2].ID
	page, err = store.Sessions.ListMessages(ctx, s.ID, &cursor, 3)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal(sent[0], page[1].ID)

	unread, err := store.Sessions.CountUnread(ctx, s.ID, s.Participants[0])
	req.NoError(err)
	req.Equal(2, unread)

	updated, err := store.Sessions.MarkAllRead(ctx, s.ID, s.Participants[0], now)
	req.NoError(err)
	req.Equal(2, updated)

	deleted, err := store.Sessions.SoftDeleteLatest(ctx, s.ID, s.Participants[0], "m2", now)
	req.NoError(err)
	req.Equal(sent[2], deleted.ID)
	_, err = store.Sessions.SoftDeleteLatest(ctx, s.ID, s.Participants[0], "m2", now)
	req.ErrorIs(err, repository.ErrNotFound)

	stored, err := store.Sessions.GetByID(ctx, s.ID)
	req.NoError(err)
	req.EqualValues(5, stored.MessageCount)
}

func TestSessionRepo_ConcurrentAppends(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	s := domain.NewSession(domain.ParticipantID("carol-"+run), domain.ParticipantID("dave-"+run), time.Now())
	_, err := store.Sessions.CreateIfAbsent(ctx, s)
	req.NoError(err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Sessions.AppendMessage(ctx, &domain.Message{
				ID: uuid.NewString(), SessionID: s.ID, Sender: s.Participants[i%2], Body: "x", Timestamp: time.Now(),
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Sessions.GetByID(ctx, s.ID)
	req.NoError(err)
	req.EqualValues(writers, stored.MessageCount)
}

func TestGroupRepo_Ledger(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	g := &domain.Group{
		ID: uuid.NewString(), Name: "climbers", Creator: domain.ParticipantID("alice-" + run),
		Members:   []domain.ParticipantID{domain.ParticipantID("alice-" + run), domain.ParticipantID("bob-" + run)},
		CreatedAt: now, LastMessageAt: now,
	}
	req.NoError(store.Groups.Create(ctx, g))

	groups, err := store.Groups.ListByMember(ctx, domain.ParticipantID("bob-"+run))
	req.NoError(err)
	req.Len(groups, 1)
	req.ElementsMatch(g.Members, groups[0].Members)

	_, err = store.Groups.AppendMessage(ctx, &domain.GroupMessage{
		ID: uuid.NewString(), GroupID: g.ID, Sender: g.Creator, Body: "hi", Timestamp: now,
	})
	req.NoError(err)

	stored, err := store.Groups.GetByID(ctx, g.ID)
	req.NoError(err)
	req.EqualValues(1, stored.MessageCount)
}

func TestParticipantAndFriendRepos(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	a := domain.ParticipantID("erin-" + run)
	b := domain.ParticipantID("finn-" + run)

	for _, id := range []domain.ParticipantID{a, b} {
		req.NoError(store.Participants.Create(ctx, &domain.Participant{ID: id, CreatedAt: time.Now()}))
	}
	req.ErrorIs(store.Participants.Create(ctx, &domain.Participant{ID: a, CreatedAt: time.Now()}), repository.ErrAlreadyExists)

	ok, err := store.Participants.Exists(ctx, b)
	req.NoError(err)
	req.True(ok)

	req.NoError(store.Friends.Add(ctx, a, b, time.Now()))
	req.NoError(store.Friends.Add(ctx, b, a, time.Now()))
	edges, err := store.Friends.List(ctx, b)
	req.NoError(err)
	req.Len(edges, 1)
	req.Equal(a, edges[0].Friend)
}

func TestSessionRepo_LateCommitKeepsNewestPreview(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.NewSession(domain.ParticipantID("gail-"+run), domain.ParticipantID("hank-"+run), now)
	_, err := store.Sessions.CreateIfAbsent(ctx, s)
	req.NoError(err)

	second := &domain.Message{
		ID: uuid.Must(uuid.NewV7()).String(), SessionID: s.ID, Sender: s.Participants[1],
		Body: "second", Timestamp: now.Add(2 * time.Millisecond),
	}
	first := &domain.Message{
		ID: uuid.Must(uuid.NewV7()).String(), SessionID: s.ID, Sender: s.Participants[0],
		Body: "first", Timestamp: now.Add(time.Millisecond),
	}
	_, err = store.Sessions.AppendMessage(ctx, second)
	req.NoError(err)
	stored, err := store.Sessions.AppendMessage(ctx, first)
	req.NoError(err)

	req.EqualValues(2, stored.MessageCount)
	req.Equal("second", stored.LastMessage)
	req.Equal(second.ID, stored.LastMessageID)
	req.True(second.Timestamp.Equal(stored.LastMessageAt))
}

func TestSessionRepo_ConcurrentDeletesTakeDistinctMessages(t *testing.T) {
	req := require.New(t)
	store, run := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.NewSession(domain.ParticipantID("ivy-"+run), domain.ParticipantID("jon-"+run), now)
	_, err := store.Sessions.CreateIfAbsent(ctx, s)
	req.NoError(err)

	const copies = 4
	for i := 0; i < copies; i++ {
		_, err := store.Sessions.AppendMessage(ctx, &domain.Message{
			ID: uuid.Must(uuid.NewV7()).String(), SessionID: s.ID, Sender: s.Participants[0],
			Body: "same", Timestamp: now.Add(time.Duration(i) * time.Millisecond),
		})
		req.NoError(err)
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < copies; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := store.Sessions.SoftDeleteLatest(ctx, s.ID, s.Participants[0], "same", now)
			require.NoError(t, err)
			mu.Lock()
			seen[msg.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	req.Len(seen, copies)

	_, err = store.Sessions.SoftDeleteLatest(ctx, s.ID, s.Participants[0], "same", now)
	req.ErrorIs(err, repository.ErrNotFound)
}
