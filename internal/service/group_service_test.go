package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/pkg/validator"
)

func newGroup(t *testing.T, f *fixture) *domain.Group {
	t.Helper()
	g, err := f.sessions.CreateGroup(context.Background(), "climbers", "alice", []domain.ParticipantID{"bob", "carol"})
	require.NoError(t, err)
	return g
}

func TestGroupSend(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "alice", "bob", "carol")
	g := newGroup(t, f)

	msg, err := f.groups.Send(context.Background(), g.ID, "carol", " crag at 9 ")
	req.NoError(err)
	req.Equal("crag at 9", msg.Body)

	stored, err := f.store.Groups.GetByID(context.Background(), g.ID)
	req.NoError(err)
	req.EqualValues(1, stored.MessageCount)
	req.Equal("crag at 9", stored.LastMessage)

	events := f.bus.Events()
	req.Equal([]string{realtime.EventGroupMessageCreated}, eventTypes(events))
	req.Equal(g.ID, events[0].Room)
}

// A message stamped earlier but committed later does not replace the group preview.
func TestGroupSend_LateCommitKeepsNewestPreview(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "alice", "bob", "carol")
	g := newGroup(t, f)

	stamps := []time.Time{g.CreatedAt.Add(2 * time.Millisecond), g.CreatedAt.Add(time.Millisecond)}
	f.groups.now = func() time.Time {
		at := stamps[0]
		stamps = stamps[1:]
		return at
	}

	_, err := f.groups.Send(context.Background(), g.ID, "bob", "second")
	req.NoError(err)
	_, err = f.groups.Send(context.Background(), g.ID, "carol", "first")
	req.NoError(err)

	stored, err := f.store.Groups.GetByID(context.Background(), g.ID)
	req.NoError(err)
	req.EqualValues(2, stored.MessageCount)
	req.Equal("second", stored.LastMessage)
	req.Equal(domain.ParticipantID("bob"), stored.LastSender)
}

func TestGroupSend_Failures(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	g := newGroup(t, f)

	_, err := f.groups.Send(context.Background(), "missing", "alice", "hi")
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = f.groups.Send(context.Background(), g.ID, "dave", "hi")
	require.ErrorIs(t, err, ErrNotGroupMember)

	_, err = f.groups.Send(context.Background(), g.ID, "alice", "   ")
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
}

func TestGroupPage_Chaining(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "alice", "bob", "carol")
	g := newGroup(t, f)

	var sent []string
	for i := 0; i < 7; i++ {
		msg, err := f.groups.Send(context.Background(), g.ID, "bob", fmt.Sprintf("m%d", i))
		req.NoError(err)
		sent = append(sent, msg.ID)
	}

	first, err := f.groups.Page(context.Background(), g.ID, 4, nil)
	req.NoError(err)
	req.True(first.HasMore)
	req.Equal(sent[3:], pageIDs(first.Messages))

	second, err := f.groups.Page(context.Background(), g.ID, 4, first.NextCursor)
	req.NoError(err)
	req.False(second.HasMore)
	req.Equal(sent[:3], pageIDs(second.Messages))

	_, err = f.groups.Page(context.Background(), "missing", 4, nil)
	req.ErrorIs(err, ErrGroupNotFound)
}

func TestGroupSoftDelete(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "alice", "bob", "carol", "dave")
	g := newGroup(t, f)
	ctx := context.Background()

	older, err := f.groups.Send(ctx, g.ID, "bob", "hi")
	req.NoError(err)
	newer, err := f.groups.Send(ctx, g.ID, "bob", "hi")
	req.NoError(err)
	f.bus.Reset()

	deleted, err := f.groups.SoftDelete(ctx, g.ID, "bob", "hi")
	req.NoError(err)
	req.Equal(newer.ID, deleted.ID)
	req.Equal([]string{realtime.EventGroupMessageDeleted}, eventTypes(f.bus.InRoom(g.ID)))

	page, err := f.groups.Page(ctx, g.ID, 10, nil)
	req.NoError(err)
	req.Equal([]string{older.ID, newer.ID}, pageIDs(page.Messages))
	req.Equal("hi", page.Messages[0].Body)
	req.Empty(page.Messages[1].Body)

	stored, err := f.store.Groups.GetByID(ctx, g.ID)
	req.NoError(err)
	req.EqualValues(2, stored.MessageCount)

	_, err = f.groups.SoftDelete(ctx, g.ID, "dave", "hi")
	req.ErrorIs(err, ErrNotGroupMember)
	_, err = f.groups.SoftDelete(ctx, g.ID, "alice", "hi")
	req.ErrorIs(err, ErrMessageNotFound)
}
