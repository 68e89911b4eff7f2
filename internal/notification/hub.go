// Package notification pushes grant summaries to connected front-end
// clients over WebSocket. Broadcasts happen strictly after the ledger
// transaction commits; a delivery failure can never roll back a reward.
package notification

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Message is one pushed notification.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan Message
	mu         sync.RWMutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewHub builds a hub. Call Run in a goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 256),
	}
}

// Run is the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Notification client connected",
				zap.String("client_id", c.clientID),
				zap.Int("total_clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			remaining := len(h.clients)
			h.mu.Unlock()
			logger.Info("Notification client disconnected",
				zap.String("client_id", c.clientID),
				zap.Int("remaining_clients", remaining))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Error("Failed to marshal notification", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client: drop it rather than block the hub.
					go func(c *client) {
						h.unregister <- c
						c.conn.Close()
					}(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastGrant pushes one grant summary to every connected client.
func (h *Hub) BroadcastGrant(result types.GrantResult) {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to marshal grant result", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- Message{Type: "grant", Data: data}:
	default:
		logger.Warn("Notification broadcast buffer full, dropping grant message",
			zap.String("user_id", result.UserID))
	}
}

// HandleWS upgrades an HTTP request into a hub connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		id = "client"
	}
	c := &client{conn: conn, send: make(chan []byte, 64), clientID: id}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	for {
		// Clients only listen; reads exist to notice disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
