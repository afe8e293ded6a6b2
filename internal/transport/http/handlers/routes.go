package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vedran77/relay/internal/service"
)

type Services struct {
	Sessions *service.SessionService
	Messages *service.MessageService
	Unread   *service.UnreadService
	Groups   *service.GroupService
	Friends  *service.FriendService
}

// Register mounts the API on mux. auth wraps every route that acts for a participant.
func Register(mux *http.ServeMux, s Services, auth func(http.Handler) http.Handler, log *slog.Logger) {
	sessionHandler := NewSessionHandler(s.Sessions, log)
	messageHandler := NewMessageHandler(s.Messages, s.Unread, log)
	groupHandler := NewGroupHandler(s.Sessions, s.Groups, log)
	participantHandler := NewParticipantHandler(s.Friends, s.Unread, log)

	// Directory
	mux.HandleFunc("POST /api/v1/participants", participantHandler.Register)
	mux.Handle("POST /api/v1/friends", auth(http.HandlerFunc(participantHandler.AddFriend)))
	mux.Handle("GET /api/v1/participants/{id}/friends", auth(http.HandlerFunc(participantHandler.ListFriends)))

	// Sessions
	mux.Handle("POST /api/v1/sessions", auth(http.HandlerFunc(sessionHandler.GetOrCreate)))
	mux.Handle("GET /api/v1/participants/{id}/sessions", auth(http.HandlerFunc(sessionHandler.List)))

	// Messages
	mux.Handle("POST /api/v1/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/v1/sessions/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("DELETE /api/v1/sessions/{id}/messages", auth(http.HandlerFunc(messageHandler.Delete)))
	mux.Handle("PUT /api/v1/sessions/{id}/read", auth(http.HandlerFunc(messageHandler.MarkRead)))

	// Unread
	mux.Handle("GET /api/v1/participants/{id}/unread", auth(http.HandlerFunc(participantHandler.UnreadCounts)))
	mux.Handle("GET /api/v1/participants/{id}/unread/{peer}", auth(http.HandlerFunc(participantHandler.UnreadCount)))

	// Groups
	mux.Handle("POST /api/v1/groups", auth(http.HandlerFunc(groupHandler.Create)))
	mux.Handle("GET /api/v1/participants/{id}/groups", auth(http.HandlerFunc(groupHandler.List)))
	mux.Handle("POST /api/v1/groups/{id}/messages", auth(http.HandlerFunc(groupHandler.Send)))
	mux.Handle("GET /api/v1/groups/{id}/messages", auth(http.HandlerFunc(groupHandler.ListMessages)))
	mux.Handle("DELETE /api/v1/groups/{id}/messages", auth(http.HandlerFunc(groupHandler.DeleteMessage)))
}
