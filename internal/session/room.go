package session

import (
	"sync"

	"presenter/internal/models"
)

// Room is the fan-out group for one presentation. It holds connections only;
// all content state lives in the store.
type Room struct {
	ID      string
	mu      sync.Mutex
	clients map[string]*Client // keyed by connection id
}

func NewRoom(id string) *Room {
	return &Room{ID: id, clients: make(map[string]*Client)}
}

// Subscribe adds the client to the fan-out group. Idempotent.
func (r *Room) Subscribe(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Unsubscribe removes the connection and returns the remaining count so the
// hub can drop empty rooms.
func (r *Room) Unsubscribe(connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connectionID)
	return len(r.clients)
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Publish delivers frame to every subscribed connection except exclude
// (empty string excludes no one). Best-effort, at-most-once, no replay.
func (r *Room) Publish(frame models.WSFrame, exclude string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if id == exclude {
			continue
		}
		c.Send(frame)
	}
}
