package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/repository/badgerdb"
)

type fixture struct {
	store    *repository.Store
	bus      *realtime.MemoryBus
	sessions *SessionService
	messages *MessageService
	unread   *UnreadService
	groups   *GroupService
	friends  *FriendService
}

func newFixture(t *testing.T, participants ...domain.ParticipantID) *fixture {
	t.Helper()
	db, err := badgerdb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := badgerdb.NewStore(db)
	bus := realtime.NewMemoryBus()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	m := metrics.NewNop()

	sessions := NewSessionService(store.Sessions, store.Groups, store.Participants, log, m)
	f := &fixture{
		store:    store,
		bus:      bus,
		sessions: sessions,
		messages: NewMessageService(store.Sessions, sessions, bus, log, m),
		unread:   NewUnreadService(store.Sessions, store.Friends, store.Participants, bus, log, m),
		groups:   NewGroupService(store.Groups, bus, log, m),
		friends:  NewFriendService(store.Friends, store.Participants),
	}
	for _, p := range participants {
		_, err := f.friends.Register(context.Background(), p)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) session(t *testing.T, a, b domain.ParticipantID) *domain.Session {
	t.Helper()
	s, _, err := f.sessions.GetOrCreate(context.Background(), a, b)
	require.NoError(t, err)
	return s
}

func (f *fixture) send(t *testing.T, sessionID string, sender domain.ParticipantID, body string) *domain.Message {
	t.Helper()
	msg, err := f.messages.Send(context.Background(), sessionID, sender, body)
	require.NoError(t, err)
	return msg
}

func eventTypes(events []realtime.Published) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
