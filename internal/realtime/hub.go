package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const defaultClientBuffer = 32

// Client is one connected viewer. Messages are delivered through a buffered
// channel; the transport drains it and writes to the wire.
type Client struct {
	id   string
	send chan Message
}

func (c *Client) ID() string { return c.id }

// Messages returns the client's delivery channel. It is closed when the
// client is disconnected from the hub.
func (c *Client) Messages() <-chan Message { return c.send }

// Hub is the process-wide registry of connected viewers and their per-event
// topic subscriptions. Every viewer receives the global channel; a viewer
// joins and leaves event topics explicitly and is removed from all of them
// on disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[int64]map[string]*Client
	logger  *slog.Logger
	buffer  int
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[int64]map[string]*Client),
		logger:  logger,
		buffer:  defaultClientBuffer,
	}
}

// Connect registers a new viewer and returns its client handle.
func (h *Hub) Connect() *Client {
	c := &Client{
		id:   uuid.New().String(),
		send: make(chan Message, h.buffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("realtime client connected", "client_id", c.id)

	return c
}

// Disconnect removes the client from the registry and from every topic it
// joined, and closes its delivery channel.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()

	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, c.id)
	for eventID, members := range h.topics {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.topics, eventID)
		}
	}

	h.mu.Unlock()

	close(c.send)

	h.logger.Debug("realtime client disconnected", "client_id", c.id)
}

// Join subscribes a connected client to an event topic. It reports whether
// the client is known to the hub.
func (h *Hub) Join(clientID string, eventID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}

	members, ok := h.topics[eventID]
	if !ok {
		members = make(map[string]*Client)
		h.topics[eventID] = members
	}
	members[clientID] = c

	return true
}

// Leave unsubscribes a client from an event topic. It reports whether the
// client is known to the hub.
func (h *Hub) Leave(clientID string, eventID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return false
	}

	if members, ok := h.topics[eventID]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.topics, eventID)
		}
	}

	return true
}

// Broadcast delivers a message to every connected viewer.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		h.deliver(c, msg)
	}
}

// BroadcastEvent delivers a message to the viewers joined to one event topic.
func (h *Hub) BroadcastEvent(eventID int64, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.topics[eventID] {
		h.deliver(c, msg)
	}
}

// Dispatch routes a message per its kind: every kind goes to the global
// channel; seat updates additionally go to the affected event's topic.
// Delivery is at-least-once, so a viewer joined to the topic may see the
// seat update twice.
func (h *Hub) Dispatch(msg Message) {
	h.Broadcast(msg)

	if msg.Kind == KindSeatUpdate && msg.EventID != 0 {
		h.BroadcastEvent(msg.EventID, msg)
	}
}

// deliver is non-blocking: a viewer that cannot keep up loses the message
// and re-fetches current state on next load.
func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("realtime client buffer full, dropping message",
			"client_id", c.id, "kind", msg.Kind)
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
