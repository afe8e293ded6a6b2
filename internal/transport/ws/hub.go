package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/vedran77/relay/internal/metrics"
	"github.com/vedran77/relay/internal/realtime"
)

var ErrHubClosed = errors.New("ws: hub closed")

// Hub owns every connection and room membership. All state is touched only by Run.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	direct     chan directMsg
	broadcast  chan broadcastMsg
	done       chan struct{}
}

type membership struct {
	client *Client
	room   string
}

type directMsg struct {
	client *Client
	data   []byte
}

type broadcastMsg struct {
	room string
	data []byte
}

var _ realtime.Bus = (*Hub)(nil)

// NewHub sizes the broadcast queue with bufferSize. Publish fails fast once it is full.
func NewHub(log *slog.Logger, m *metrics.Metrics, bufferSize int) *Hub {
	return &Hub{
		log:        log,
		metrics:    m,
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		direct:     make(chan directMsg, bufferSize),
		broadcast:  make(chan broadcastMsg, bufferSize),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns once ctx is done, after closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.log.Info("ws hub stopped")
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.addToRoom(c, realtime.PersonalRoom(c.participant))
			h.metrics.Connections.Inc()
			h.log.Debug("ws client connected", "participant", c.participant, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("ws client disconnected", "participant", c.participant, "total", len(h.clients))
			}

		case m := <-h.join:
			if _, ok := h.clients[m.client]; ok {
				h.addToRoom(m.client, m.room)
			}

		case m := <-h.leave:
			if _, ok := h.clients[m.client]; ok {
				h.removeFromRoom(m.client, m.room)
			}

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.data)
			}

		case msg := <-h.broadcast:
			for c := range h.rooms[msg.room] {
				h.deliver(c, msg.data)
			}
		}
	}
}

// Publish queues an event for everyone in room. It never blocks.
func (h *Hub) Publish(room, eventType string, payload any) error {
	data, err := encode(eventType, room, payload)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- broadcastMsg{room: room, data: data}:
		return nil
	default:
		return realtime.ErrSaturated
	}
}

// Join is idempotent.
func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(c *Client, room string) {
	select {
	case h.leave <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// reply sends a frame to one client only.
func (h *Hub) reply(c *Client, eventType string, payload any) {
	data, err := encode(eventType, "", payload)
	if err != nil {
		h.log.Error("encode reply", "event", eventType, "error", err)
		return
	}
	select {
	case h.direct <- directMsg{client: c, data: data}:
	default:
	}
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Client buffer full: disconnect rather than stall the hub.
		h.log.Warn("ws client too slow, dropping", "participant", c.participant)
		h.drop(c)
	}
}

func (h *Hub) addToRoom(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) drop(c *Client) {
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.Connections.Dec()
}

func encode(eventType, room string, payload any) ([]byte, error) {
	evt, err := realtime.NewEvent(eventType, room, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
