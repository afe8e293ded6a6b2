package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vedran77/relay/internal/service"
)

// ParticipantHandler serves the directory, friend list and unread counts.
type ParticipantHandler struct {
	friendService *service.FriendService
	unreadService *service.UnreadService
	log           *slog.Logger
}

func NewParticipantHandler(friendService *service.FriendService, unreadService *service.UnreadService, log *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{friendService: friendService, unreadService: unreadService, log: log}
}

type registerRequest struct {
	ID string `json:"id" validate:"required,participant"`
}

func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerRequest
	if !decode(w, r, &input) {
		return
	}
	p, err := h.friendService.Register(r.Context(), participant(input.ID))
	if err != nil {
		handleError(w, h.log, "register participant", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type addFriendRequest struct {
	User1 string `json:"user1" validate:"required,participant"`
	User2 string `json:"user2" validate:"required,participant"`
}

func (h *ParticipantHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	var input addFriendRequest
	if !decode(w, r, &input) {
		return
	}
	u1, u2 := participant(input.User1), participant(input.User2)
	if !actingAsEither(w, r, u1, u2) {
		return
	}
	if err := h.friendService.Add(r.Context(), u1, u2); err != nil {
		handleError(w, h.log, "add friend", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ParticipantHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParticipant(w, r, "id")
	if !ok || !actingAs(w, r, id) {
		return
	}
	friends, err := h.friendService.List(r.Context(), id)
	if err != nil {
		handleError(w, h.log, "list friends", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": friends})
}

func (h *ParticipantHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParticipant(w, r, "id")
	if !ok || !actingAs(w, r, id) {
		return
	}
	counts, err := h.unreadService.UnreadCounts(r.Context(), id)
	if err != nil {
		handleError(w, h.log, "unread counts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reader": id, "counts": counts})
}

func (h *ParticipantHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParticipant(w, r, "id")
	if !ok || !actingAs(w, r, id) {
		return
	}
	peer, ok := pathParticipant(w, r, "peer")
	if !ok {
		return
	}
	count, err := h.unreadService.UnreadCount(r.Context(), id, peer)
	if err != nil {
		handleError(w, h.log, "unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reader": id, "peer": peer, "count": count})
}
