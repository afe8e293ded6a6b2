package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/transport/http/middleware"
	"github.com/vedran77/relay/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// decode reads the JSON body into v and checks its validate tags.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	if err := validator.Struct(v); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			writeValidationErrors(w, errs)
		} else {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		}
		return false
	}
	return true
}

// pathParticipant parses the {name} path segment as a participant id.
func pathParticipant(w http.ResponseWriter, r *http.Request, name string) (domain.ParticipantID, bool) {
	id, err := domain.NewParticipantID(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid participant ID")
		return "", false
	}
	return id, true
}

// actingAs rejects authenticated requests made on behalf of someone else.
func actingAs(w http.ResponseWriter, r *http.Request, actor domain.ParticipantID) bool {
	if p, ok := middleware.GetParticipant(r.Context()); ok && p != actor {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only act as yourself")
		return false
	}
	return true
}

// pageParams reads ?limit= (default 10) and ?cursor=.
func pageParams(w http.ResponseWriter, r *http.Request) (int, *string, bool) {
	limit := service.DefaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil {
			writeValidationErrors(w, validator.ValidationErrors{"limit": "Limit must be a number"})
			return 0, nil, false
		}
		limit = l
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	return limit, cursor, true
}

// handleError maps service errors to responses. Unknown errors are logged and hidden.
func handleError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var errs validator.ValidationErrors
	switch {
	case errors.As(err, &errs):
		writeValidationErrors(w, errs)
	case errors.Is(err, service.ErrSameParticipant):
		writeError(w, http.StatusBadRequest, "SAME_PARTICIPANT", "Participants must be different")
	case errors.Is(err, service.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "PARTICIPANT_NOT_FOUND", "Participant not found")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Group not found")
	case errors.Is(err, service.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "MESSAGE_NOT_FOUND", "No matching message found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this session")
	case errors.Is(err, service.ErrNotGroupMember):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a member of this group")
	case errors.Is(err, repository.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", "Already exists")
	default:
		log.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

// participant normalizes a field that already passed the participant tag.
func participant(raw string) domain.ParticipantID {
	p, _ := domain.NewParticipantID(raw)
	return p
}

// actingAsEither is actingAs for commands with two named participants.
func actingAsEither(w http.ResponseWriter, r *http.Request, a, b domain.ParticipantID) bool {
	if p, ok := middleware.GetParticipant(r.Context()); ok && p != a && p != b {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only act as yourself")
		return false
	}
	return true
}
