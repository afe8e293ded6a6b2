package handlers

import (
	"log/slog"
	"net/http"

	"github.com/samber/lo"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
)

type GroupHandler struct {
	sessionService *service.SessionService
	groupService   *service.GroupService
	log            *slog.Logger
}

func NewGroupHandler(sessionService *service.SessionService, groupService *service.GroupService, log *slog.Logger) *GroupHandler {
	return &GroupHandler{sessionService: sessionService, groupService: groupService, log: log}
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	Creator   string   `json:"creator" validate:"required,participant"`
	MemberIDs []string `json:"member_ids" validate:"dive,participant"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input createGroupRequest
	if !decode(w, r, &input) {
		return
	}
	creator := participant(input.Creator)
	if !actingAs(w, r, creator) {
		return
	}

	members := lo.Map(input.MemberIDs, func(id string, _ int) domain.ParticipantID { return participant(id) })
	group, err := h.sessionService.CreateGroup(r.Context(), input.Name, creator, members)
	if err != nil {
		handleError(w, h.log, "create group", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"group_id": group.ID,
		"group":    group,
	})
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParticipant(w, r, "id")
	if !ok || !actingAs(w, r, id) {
		return
	}
	groups, err := h.sessionService.ListGroups(r.Context(), id)
	if err != nil {
		handleError(w, h.log, "list groups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type groupSendRequest struct {
	Sender string `json:"sender" validate:"required,participant"`
	Body   string `json:"body" validate:"required"`
}

func (h *GroupHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input groupSendRequest
	if !decode(w, r, &input) {
		return
	}
	sender := participant(input.Sender)
	if !actingAs(w, r, sender) {
		return
	}

	msg, err := h.groupService.Send(r.Context(), r.PathValue("id"), sender, input.Body)
	if err != nil {
		handleError(w, h.log, "send group message", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message_id": msg.ID,
		"message":    msg,
	})
}

func (h *GroupHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, cursor, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.groupService.Page(r.Context(), r.PathValue("id"), limit, cursor)
	if err != nil {
		handleError(w, h.log, "list group messages", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *GroupHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var input deleteMessageRequest
	if !decode(w, r, &input) {
		return
	}
	requester := participant(input.Requester)
	if !actingAs(w, r, requester) {
		return
	}

	msg, err := h.groupService.SoftDelete(r.Context(), r.PathValue("id"), requester, input.Body)
	if err != nil {
		handleError(w, h.log, "delete group message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message_id": msg.ID})
}
