package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
	"github.com/vedran77/relay/internal/repository/badgerdb"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
)

type api struct {
	t       *testing.T
	handler http.Handler
	bus     *realtime.MemoryBus
	token   string
}

func newAPI(t *testing.T, secret string) *api {
	t.Helper()
	db, err := badgerdb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := badgerdb.NewStore(db)
	bus := realtime.NewMemoryBus()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	m := metrics.NewNop()

	sessions := service.NewSessionService(store.Sessions, store.Groups, store.Participants, log, m)
	mux := http.NewServeMux()
	Register(mux, Services{
		Sessions: sessions,
		Messages: service.NewMessageService(store.Sessions, sessions, bus, log, m),
		Unread:   service.NewUnreadService(store.Sessions, store.Friends, store.Participants, bus, log, m),
		Groups:   service.NewGroupService(store.Groups, bus, log, m),
		Friends:  service.NewFriendService(store.Friends, store.Participants),
	}, middleware.Auth(secret), log)

	return &api{t: t, handler: mux, bus: bus}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *api) register(ids ...string) {
	a.t.Helper()
	for _, id := range ids {
		rec := a.do(http.MethodPost, "/api/v1/participants", map[string]string{"id": id})
		require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type pageBody struct {
	Messages []struct {
		ID      string `json:"id"`
		Body    string `json:"body"`
		Deleted bool   `json:"deleted"`
	} `json:"messages"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

func TestSessionLifecycle(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, "")
	a.register("alice", "bob")

	rec := a.do(http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "bob", "user2": "alice"})
	req.Equal(http.StatusOK, rec.Code)
	created := decodeBody[struct {
		SessionID string `json:"session_id"`
		Created   bool   `json:"created"`
	}](t, rec)
	req.Equal("alice_bob", created.SessionID)
	req.True(created.Created)

	for i, body := range []string{"hi", "hello", "hi"} {
		sender := "alice"
		if i == 1 {
			sender = "bob"
		}
		rec = a.do(http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_bob", "sender": sender, "body": body})
		req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = a.do(http.MethodGet, "/api/v1/sessions/alice_bob/messages?limit=2", nil)
	req.Equal(http.StatusOK, rec.Code)
	page := decodeBody[pageBody](t, rec)
	req.Len(page.Messages, 2)
	req.True(page.HasMore)
	req.Equal("hello", page.Messages[0].Body)

	rec = a.do(http.MethodGet, "/api/v1/sessions/alice_bob/messages?limit=2&cursor="+*page.NextCursor, nil)
	page = decodeBody[pageBody](t, rec)
	req.Len(page.Messages, 1)
	req.False(page.HasMore)

	rec = a.do(http.MethodGet, "/api/v1/participants/bob/unread/alice", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.EqualValues(2, decodeBody[map[string]any](t, rec)["count"])

	rec = a.do(http.MethodPut, "/api/v1/sessions/alice_bob/read", map[string]any{"reader": "bob"})
	req.Equal(http.StatusOK, rec.Code)
	req.EqualValues(2, decodeBody[map[string]any](t, rec)["updated"])

	rec = a.do(http.MethodDelete, "/api/v1/sessions/alice_bob/messages", map[string]string{"requester": "alice", "body": "hi"})
	req.Equal(http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/sessions/alice_bob/messages", nil)
	page = decodeBody[pageBody](t, rec)
	req.Len(page.Messages, 3)
	req.True(page.Messages[2].Deleted)
	req.Empty(page.Messages[2].Body)
	req.Equal("hi", page.Messages[0].Body)

	rec = a.do(http.MethodGet, "/api/v1/participants/alice/sessions", nil)
	req.Equal(http.StatusOK, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t, "")
	a.register("alice", "bob", "carol")
	a.do(http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice", "user2": "bob"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"same participant", http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice", "user2": "alice"}, http.StatusBadRequest, "SAME_PARTICIPANT"},
		{"missing participant", http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice", "user2": "ghost"}, http.StatusNotFound, "PARTICIPANT_NOT_FOUND"},
		{"missing field", http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad json", http.MethodPost, "/api/v1/messages", "{", http.StatusBadRequest, "INVALID_JSON"},
		{"no session or recipient", http.MethodPost, "/api/v1/messages", map[string]string{"sender": "alice", "body": "hi"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank body", http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_bob", "sender": "alice", "body": "   "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown session", http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_zed", "sender": "alice", "body": "hi"}, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"outsider sends", http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_bob", "sender": "carol", "body": "hi"}, http.StatusForbidden, "FORBIDDEN"},
		{"limit too large", http.MethodGet, "/api/v1/sessions/alice_bob/messages?limit=101", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"limit not a number", http.MethodGet, "/api/v1/sessions/alice_bob/messages?limit=ten", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"page unknown session", http.MethodGet, "/api/v1/sessions/alice_zed/messages", nil, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"delete no match", http.MethodDelete, "/api/v1/sessions/alice_bob/messages", map[string]string{"requester": "alice", "body": "nope"}, http.StatusNotFound, "MESSAGE_NOT_FOUND"},
		{"outsider marks read", http.MethodPut, "/api/v1/sessions/alice_bob/read", map[string]string{"reader": "carol"}, http.StatusForbidden, "FORBIDDEN"},
		{"unread of ghost", http.MethodGet, "/api/v1/participants/ghost/unread", nil, http.StatusNotFound, "PARTICIPANT_NOT_FOUND"},
		{"invalid path id", http.MethodGet, "/api/v1/participants/a_b/unread", nil, http.StatusBadRequest, "INVALID_ID"},
		{"duplicate participant", http.MethodPost, "/api/v1/participants", map[string]string{"id": "alice"}, http.StatusConflict, "ALREADY_EXISTS"},
		{"group without members", http.MethodPost, "/api/v1/groups", map[string]any{"name": "x", "creator": "alice"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown group", http.MethodGet, "/api/v1/groups/nope/messages", nil, http.StatusNotFound, "GROUP_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if raw, ok := tt.body.(string); ok {
				r := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(raw))
				rec = httptest.NewRecorder()
				a.handler.ServeHTTP(rec, r)
			} else {
				rec = a.do(tt.method, tt.path, tt.body)
			}
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, tt.code, decodeBody[errorBody](t, rec).Error.Code)
		})
	}
}

func TestSendByRecipientAndFriends(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, "")
	a.register("alice", "bob")

	rec := a.do(http.MethodPost, "/api/v1/friends", map[string]string{"user1": "alice", "user2": "bob"})
	req.Equal(http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/messages", map[string]string{"recipient": "alice", "sender": "bob", "body": "hey"})
	req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	req.Equal("alice_bob", decodeBody[map[string]any](t, rec)["session_id"])

	rec = a.do(http.MethodGet, "/api/v1/participants/alice/unread", nil)
	req.Equal(http.StatusOK, rec.Code)
	counts := decodeBody[struct {
		Counts map[string]int `json:"counts"`
	}](t, rec)
	req.Equal(map[string]int{"bob": 1}, counts.Counts)

	rec = a.do(http.MethodGet, "/api/v1/participants/alice/friends", nil)
	req.JSONEq(`{"friends":["bob"]}`, rec.Body.String())
}

func TestGroupRoutes(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, "")
	a.register("alice", "bob")

	rec := a.do(http.MethodPost, "/api/v1/groups", map[string]any{"name": "climbers", "creator": "alice", "member_ids": []string{"bob"}})
	req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	groupID := decodeBody[map[string]any](t, rec)["group_id"].(string)

	rec = a.do(http.MethodPost, "/api/v1/groups/"+groupID+"/messages", map[string]string{"sender": "bob", "body": "crag?"})
	req.Equal(http.StatusCreated, rec.Code)
	req.Len(a.bus.InRoom(groupID), 1)

	rec = a.do(http.MethodPost, "/api/v1/groups/"+groupID+"/messages", map[string]string{"sender": "carol", "body": "me too"})
	req.Equal(http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/groups/"+groupID+"/messages?limit=5", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Len(decodeBody[pageBody](t, rec).Messages, 1)

	rec = a.do(http.MethodDelete, "/api/v1/groups/"+groupID+"/messages", map[string]string{"requester": "bob", "body": "crag?"})
	req.Equal(http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/participants/bob/groups", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Len(decodeBody[map[string][]any](t, rec)["groups"], 1)
}

func TestAuthenticatedActor(t *testing.T) {
	const secret = "s3cret"
	a := newAPI(t, secret)
	a.register("alice", "bob")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	rec := a.do(http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice", "user2": "bob"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	a.token = signed
	rec = a.do(http.MethodPost, "/api/v1/sessions", map[string]string{"user1": "alice", "user2": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_bob", "sender": "bob", "body": "spoof"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/messages", map[string]string{"session_id": "alice_bob", "sender": "alice", "body": "real"})
	require.Equal(t, http.StatusCreated, rec.Code)
}
