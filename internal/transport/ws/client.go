package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/realtime"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// RoomGuard decides whether a participant may listen to a session or group room.
type RoomGuard interface {
	CanJoin(ctx context.Context, participant domain.ParticipantID, room string) (bool, error)
}

type RoomGuardFunc func(ctx context.Context, participant domain.ParticipantID, room string) (bool, error)

func (f RoomGuardFunc) CanJoin(ctx context.Context, participant domain.ParticipantID, room string) (bool, error) {
	return f(ctx, participant, room)
}

// Client is a single websocket connection of one participant.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	participant domain.ParticipantID
	// guard is nil when any room but another participant's personal room may be joined.
	guard RoomGuard

	// rooms is owned by the hub goroutine.
	rooms map[string]struct{}
	send  chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, participant domain.ParticipantID, guard RoomGuard) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		participant: participant,
		guard:       guard,
		rooms:       make(map[string]struct{}),
		send:        make(chan []byte, sendBufSize),
	}
}

// ReadPump reads control events until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event realtime.Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.hub.log.Debug("ws client closed", "participant", c.participant)
			} else {
				c.hub.log.Debug("ws read error", "participant", c.participant, "error", err)
			}
			return
		}
		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.hub.log.Debug("ws write error", "participant", c.participant, "error", err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.hub.log.Debug("ws ping error", "participant", c.participant, "error", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *realtime.Event) {
	switch event.Type {
	case realtime.EventJoinRoom, realtime.EventLeaveRoom:
		var p realtime.RoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.Room == "" {
			c.sendError("INVALID_PAYLOAD", "room is required")
			return
		}
		if owner, ok := realtime.IsPersonalRoom(p.Room); ok && owner != c.participant {
			c.sendError("FORBIDDEN_ROOM", "cannot join another participant's personal room")
			return
		}
		if event.Type == realtime.EventLeaveRoom {
			c.hub.Leave(c, p.Room)
			return
		}
		if !c.mayJoin(ctx, p.Room) {
			c.sendError("FORBIDDEN_ROOM", "not a participant of this room")
			return
		}
		c.hub.Join(c, p.Room)

	case realtime.EventPing:
		c.hub.reply(c, realtime.EventPong, nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) mayJoin(ctx context.Context, room string) bool {
	if _, personal := realtime.IsPersonalRoom(room); personal || c.guard == nil {
		return true
	}
	ok, err := c.guard.CanJoin(ctx, c.participant, room)
	if err != nil {
		c.hub.log.Error("ws room access", "participant", c.participant, "room", room, "error", err)
		return false
	}
	return ok
}

func (c *Client) sendError(code, message string) {
	c.hub.reply(c, realtime.EventError, realtime.ErrorPayload{Code: code, Message: message})
}
