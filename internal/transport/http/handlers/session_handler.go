package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vedran77/relay/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	log            *slog.Logger
}

func NewSessionHandler(sessionService *service.SessionService, log *slog.Logger) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, log: log}
}

type createSessionRequest struct {
	User1 string `json:"user1" validate:"required,participant"`
	User2 string `json:"user2" validate:"required,participant"`
}

func (h *SessionHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	var input createSessionRequest
	if !decode(w, r, &input) {
		return
	}
	u1, u2 := participant(input.User1), participant(input.User2)
	if !actingAsEither(w, r, u1, u2) {
		return
	}

	session, created, err := h.sessionService.GetOrCreate(r.Context(), u1, u2)
	if err != nil {
		handleError(w, h.log, "get or create session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"created":    created,
		"session":    session,
	})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParticipant(w, r, "id")
	if !ok || !actingAs(w, r, id) {
		return
	}
	sessions, err := h.sessionService.ListSessions(r.Context(), id)
	if err != nil {
		handleError(w, h.log, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
