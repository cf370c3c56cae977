package server

import (
	"sync"

	"github.com/coder/quartz"
	"github.com/decred/slog"
	"github.com/vctt94/pokerroom/pkg/protocol"
)

// Hub tracks the websocket connections of every room and broadcasts room
// updates to them. Each connection gets a view built for its player.
type Hub struct {
	log   slog.Logger
	clock quartz.Clock

	mu    sync.RWMutex
	rooms map[string]map[*Connection]struct{}
}

// NewHub returns an empty hub.
func NewHub(log slog.Logger, clock quartz.Clock) *Hub {
	if log == nil {
		log = slog.Disabled
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Hub{
		log:   log,
		clock: clock,
		rooms: make(map[string]map[*Connection]struct{}),
	}
}

// Register adds a connection to its room.
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[c.roomID]
	if !ok {
		conns = make(map[*Connection]struct{})
		h.rooms[c.roomID] = conns
	}
	conns[c] = struct{}{}
	h.log.Infof("Client %s connected to room %s (%d connected)", c.playerID, c.roomID, len(conns))
}

// Unregister removes a connection.
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.rooms, c.roomID)
	}
	h.log.Infof("Client %s disconnected from room %s (%d connected)", c.playerID, c.roomID, len(conns))
}

// Connected returns the number of connections of a room.
func (h *Hub) Connected(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast sends the batch to every connection of the room.
func (h *Hub) Broadcast(batch *EventBatch) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.rooms[batch.RoomID]))
	for c := range h.rooms[batch.RoomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	now := h.clock.Now()
	for _, c := range conns {
		msg := &protocol.ServerMessage{
			Type:      protocol.MsgUpdate,
			Events:    batch.Events,
			State:     protocol.NewTableView(batch.Table, c.playerID),
			Timestamp: now,
		}
		if err := c.Send(msg); err != nil {
			h.log.Debugf("Dropped update for %s in room %s: %v", c.playerID, batch.RoomID, err)
		}
	}
}

// CloseAll closes every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var conns []*Connection
	for _, room := range h.rooms {
		for c := range room {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}
