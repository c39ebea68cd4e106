package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Event types pushed to connected dashboards.
const (
	EventRequestCreated       = "request_created"
	EventRequestStatusChanged = "request_status_changed"
)

// Event is a message sent over WebSocket to dashboard clients.
type Event struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Client represents a connected dashboard client.
type Client struct {
	Conn *websocket.Conn
}

// Hub maintains the set of connected dashboard clients and broadcasts
// request events to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every connected client. Write failures are
// ignored; the read loop tears the client down.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Conn.WriteJSON(event)
	}
}

// NotifyRequestCreated announces a newly submitted verification request.
func (h *Hub) NotifyRequestCreated(data interface{}) {
	h.Broadcast(Event{
		Type:    EventRequestCreated,
		Message: "New verification request submitted",
		Data:    data,
	})
}

// NotifyStatusChanged announces a request status transition.
func (h *Hub) NotifyStatusChanged(data interface{}) {
	h.Broadcast(Event{
		Type:    EventRequestStatusChanged,
		Message: "Request status updated",
		Data:    data,
	})
}
