package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client
type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub maintains the set of active clients and their match rooms
type Hub struct {
	clients map[string]*Client            // userID -> Client
	rooms   map[string]map[string]*Client // matchID -> userID -> Client
	mu      sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// register binds a client to its user ID, replacing any previous socket.
// Room memberships move to the new socket under the same lock, so no
// broadcast can reach the replaced client's closed channel.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if old, exists := h.clients[c.userID]; exists && old != c {
		close(old.send)
		for _, room := range h.rooms {
			if member, ok := room[c.userID]; ok && member == old {
				room[c.userID] = c
			}
		}
	}
	h.clients[c.userID] = c
	h.mu.Unlock()
}

// unregister drops a client and its room memberships.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if cur, exists := h.clients[c.userID]; exists && cur == c {
		delete(h.clients, c.userID)
		close(c.send)
	}
	for matchID, room := range h.rooms {
		if member, ok := room[c.userID]; ok && member == c {
			delete(room, c.userID)
			if len(room) == 0 {
				delete(h.rooms, matchID)
			}
		}
	}
	h.mu.Unlock()
}

// JoinRoom subscribes a connected user to a match room.
func (h *Hub) JoinRoom(matchID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	if !ok {
		return
	}
	if h.rooms[matchID] == nil {
		h.rooms[matchID] = make(map[string]*Client)
	}
	h.rooms[matchID][userID] = c
}

// CloseRoom drops a finished match's room.
func (h *Hub) CloseRoom(matchID string) {
	h.mu.Lock()
	delete(h.rooms, matchID)
	h.mu.Unlock()
}

// SendToUser sends one message to a specific connected user.
func (h *Hub) SendToUser(userID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[userID]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] SendToUser dropped message for user %s (buffer full)", userID)
		}
	}
}

// BroadcastToMatch sends a message to every user in a match room.
func (h *Hub) BroadcastToMatch(matchID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, exists := h.rooms[matchID]; exists {
		for userID, client := range room {
			select {
			case client.send <- data:
			default:
				log.Printf("[WS] Broadcast dropped for user %s in match %s (buffer full)", userID, matchID)
			}
		}
	}
}
