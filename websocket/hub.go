package websocket

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/logging"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// Hub fans booking and payment events out to connected admin consoles.
type Hub struct {
	clients    map[*websocket.Conn]uuid.UUID
	clientsMu  sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan interface{}
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]uuid.UUID),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan interface{}, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case client := <-h.Register:
			logging.Log.Infof("Admin client registered: %s", client.UserID)
			h.clientsMu.Lock()
			h.clients[client.Conn] = client.UserID
			h.clientsMu.Unlock()
		case client := <-h.Unregister:
			logging.Log.Infof("Admin client unregistered: %s", client.UserID)
			h.clientsMu.Lock()
			delete(h.clients, client.Conn)
			h.clientsMu.Unlock()
		case message := <-h.Broadcast:
			h.send(message)
		}
	}
}

func (h *Hub) send(message interface{}) {
	var dead []*websocket.Conn

	h.clientsMu.RLock()
	for conn, userID := range h.clients {
		if err := conn.WriteJSON(message); err != nil {
			logging.Log.Warnf("Error sending event to admin %s: %v", userID, err)
			dead = append(dead, conn)
		}
	}
	h.clientsMu.RUnlock()

	if len(dead) == 0 {
		return
	}
	h.clientsMu.Lock()
	for _, conn := range dead {
		conn.Close()
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()
}

// Publish queues message for broadcast without blocking the caller; events
// are dropped when the hub is saturated.
func (h *Hub) Publish(message interface{}) {
	select {
	case h.Broadcast <- message:
	default:
		logging.Log.Warn("⚠️ Admin event feed saturated, dropping event")
	}
}

func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stop() {
	close(h.done)
}
