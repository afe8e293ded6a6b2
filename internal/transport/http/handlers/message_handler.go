package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
	unreadService  *service.UnreadService
	log            *slog.Logger
}

func NewMessageHandler(messageService *service.MessageService, unreadService *service.UnreadService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, unreadService: unreadService, log: log}
}

type sendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required_without=Recipient"`
	Recipient string `json:"recipient" validate:"omitempty,participant"`
	Sender    string `json:"sender" validate:"required,participant"`
	Body      string `json:"body" validate:"required"`
}

// Send appends to a session given by id, or by the sender/recipient pair.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input sendMessageRequest
	if !decode(w, r, &input) {
		return
	}
	sender := participant(input.Sender)
	if !actingAs(w, r, sender) {
		return
	}

	var msg *domain.Message
	var err error
	if input.SessionID != "" {
		msg, err = h.messageService.Send(r.Context(), input.SessionID, sender, input.Body)
	} else {
		msg, err = h.messageService.SendTo(r.Context(), sender, participant(input.Recipient), input.Body)
	}
	if err != nil {
		handleError(w, h.log, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message_id": msg.ID,
		"session_id": msg.SessionID,
		"message":    msg,
	})
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, cursor, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.messageService.Page(r.Context(), r.PathValue("id"), limit, cursor)
	if err != nil {
		handleError(w, h.log, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type deleteMessageRequest struct {
	Requester string `json:"requester" validate:"required,participant"`
	Body      string `json:"body" validate:"required"`
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var input deleteMessageRequest
	if !decode(w, r, &input) {
		return
	}
	requester := participant(input.Requester)
	if !actingAs(w, r, requester) {
		return
	}

	msg, err := h.messageService.SoftDelete(r.Context(), r.PathValue("id"), requester, input.Body)
	if err != nil {
		handleError(w, h.log, "delete message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message_id": msg.ID})
}

type markReadRequest struct {
	Reader     string   `json:"reader" validate:"required,participant"`
	MessageIDs []string `json:"message_ids" validate:"omitempty,max=500,dive,required"`
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var input markReadRequest
	if !decode(w, r, &input) {
		return
	}
	reader := participant(input.Reader)
	if !actingAs(w, r, reader) {
		return
	}

	updated, err := h.unreadService.MarkRead(r.Context(), r.PathValue("id"), reader, input.MessageIDs)
	if err != nil {
		handleError(w, h.log, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
