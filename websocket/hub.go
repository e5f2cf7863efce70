package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub    *Hub
	UserID string
	Role   string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Message is the envelope for everything sent over the socket
type Message struct {
	Type      string      `json:"type"`
	SenderID  string      `json:"sender_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MessageHandler handles an inbound message type
type MessageHandler func(*Client, *Message) error

// Hub manages all WebSocket connections. A user may hold several
// connections at once, one per device.
type Hub struct {
	clients map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client

	MessageHandlers map[string]MessageHandler

	done chan struct{}
	mu   sync.RWMutex
}

var operatorRoles = map[string]bool{"admin": true, "moderator": true}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	hub := &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		done:            make(chan struct{}),
	}
	hub.MessageHandlers["ping"] = hub.handlePing
	return hub
}

// Run starts the hub's main loop and returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop ends Run and closes every client send channel
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	log.Printf("🔌 Client registered: user=%s role=%s", client.UserID, client.Role)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
	log.Printf("🔌 Client unregistered: user=%s role=%s", client.UserID, client.Role)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for c := range conns {
			close(c.Send)
		}
		delete(h.clients, userID)
	}
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(&Message{Type: msgType, Data: data, Timestamp: time.Now()})
}

// SendToUser delivers to every connection of userID. It reports whether
// at least one connection accepted the message.
func (h *Hub) SendToUser(userID, msgType string, data interface{}) bool {
	payload, err := encode(msgType, data)
	if err != nil {
		log.Printf("❌ Error marshaling message: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return false
	}
	delivered := false
	for c := range conns {
		select {
		case c.Send <- payload:
			delivered = true
		default:
			log.Printf("⚠️ User %s's send buffer is full", userID)
		}
	}
	return delivered
}

// BroadcastToOperators sends to every connected admin and moderator
func (h *Hub) BroadcastToOperators(msgType string, data interface{}) {
	payload, err := encode(msgType, data)
	if err != nil {
		log.Printf("❌ Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, conns := range h.clients {
		for c := range conns {
			if !operatorRoles[c.Role] {
				continue
			}
			select {
			case c.Send <- payload:
			default:
				log.Printf("⚠️ Operator %s's send buffer is full", userID)
			}
		}
	}
}

// IsUserConnected checks if a user has at least one open connection
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

func (h *Hub) handlePing(client *Client, _ *Message) error {
	payload, err := encode("pong", nil)
	if err != nil {
		return err
	}
	select {
	case client.Send <- payload:
	default:
		log.Printf("⚠️ Could not send pong to user %s", client.UserID)
	}
	return nil
}
