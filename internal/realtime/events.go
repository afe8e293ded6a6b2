package realtime

import (
	"encoding/json"
	"time"

	"github.com/vedran77/relay/internal/domain"
)

// Server to client
const (
	EventMessageCreated      = "message-created"
	EventUnreadIncremented   = "unread-incremented"
	EventMessageDeleted      = "message-deleted"
	EventMessagesRead        = "messages-read"
	EventGroupMessageCreated = "group-message-created"
	EventGroupMessageDeleted = "group-message-deleted"
	EventPong                = "pong"
	EventError               = "error"
)

// Client to server
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventPing      = "ping"
)

// Event is the envelope of every frame on the wire.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

func NewEvent(eventType, room string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Room: room, Timestamp: time.Now().UnixMilli()}
	if payload == nil {
		return evt, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt.Payload = data
	return evt, nil
}

type MessageCreatedPayload struct {
	SessionID string               `json:"sessionId"`
	MessageID string               `json:"messageId"`
	Sender    domain.ParticipantID `json:"sender"`
	Body      string               `json:"body"`
	Timestamp time.Time            `json:"timestamp"`
}

type UnreadIncrementedPayload struct {
	From      domain.ParticipantID `json:"from"`
	SessionID string               `json:"sessionId"`
}

type MessageDeletedPayload struct {
	SessionID string               `json:"sessionId"`
	MessageID string               `json:"messageId"`
	Sender    domain.ParticipantID `json:"sender"`
}

type MessagesReadPayload struct {
	SessionID string               `json:"sessionId"`
	Reader    domain.ParticipantID `json:"reader"`
	Count     int                  `json:"count"`
}

type GroupMessageCreatedPayload struct {
	GroupID   string               `json:"groupId"`
	MessageID string               `json:"messageId"`
	Sender    domain.ParticipantID `json:"sender"`
	Body      string               `json:"body"`
	Timestamp time.Time            `json:"timestamp"`
}

type GroupMessageDeletedPayload struct {
	GroupID   string               `json:"groupId"`
	MessageID string               `json:"messageId"`
	Sender    domain.ParticipantID `json:"sender"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
