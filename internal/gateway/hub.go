package gateway

import (
	"sync"
)

// Hub is the per-room subscriber registry: room ID -> connection ID -> client.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[uint64]*client
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[uint64]*client)}
}

func (h *Hub) Subscribe(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[uint64]*client)
	}
	h.rooms[roomID][c.id] = c
}

func (h *Hub) Unsubscribe(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast queues the frame on every subscriber of the room and returns the
// number of subscribers it reached. A subscriber whose queue is full is
// dropped; the others are unaffected.
func (h *Hub) Broadcast(roomID string, frame []byte) int {
	h.mu.RLock()
	subs := make([]*client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range subs {
		if c.enqueue(frame) {
			n++
		}
	}

	return n
}

// Subscribers returns the number of connections subscribed to the room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}
