package websocket

import (
	"encoding/json"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub maintains the set of active clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// Client is one websocket connection of an authenticated user.
type Client struct {
	send   chan []byte
	userID uint
	once   sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run processes registrations and broadcasts until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mutex.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithField("user_id", client.userID).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mutex.Unlock()
			logrus.WithField("user_id", client.userID).Info("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.fanOut(message, func(*Client) bool { return true })
		}
	}
}

// fanOut delivers message to matching clients and drops the ones that cannot keep up.
func (h *Hub) fanOut(message []byte, match func(*Client) bool) (sent, dropped int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- message:
			sent++
		default:
			dropped++
			client.close()
			delete(h.clients, client)
		}
	}
	return sent, dropped
}

// BroadcastToUser sends a message to all connections for a specific user
func (h *Hub) BroadcastToUser(userID uint, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	sent, dropped := h.fanOut(data, func(c *Client) bool { return c.userID == userID })
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"bytes":   len(data),
		"sent":    sent,
		"dropped": dropped,
	}).Debug("BroadcastToUser")
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logrus.Warn("Broadcast channel is full")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ConnectedUsers returns the distinct user ids with at least one open connection.
func (h *Hub) ConnectedUsers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	users := map[uint]struct{}{}
	for c := range h.clients {
		users[c.userID] = struct{}{}
	}
	return len(users)
}

// ServeFiberWS pumps messages for a Fiber websocket connection until it closes.
func (h *Hub) ServeFiberWS(c *fiberws.Conn, userID uint) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("user_id", userID).Errorf("ServeFiberWS panic: %v", r)
		}
	}()

	client := &Client{
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	h.register <- client

	go h.writePump(client, c)
	// the read pump stays on this goroutine; Fiber closes the conn when the handler returns
	h.readPump(client, c)
}

func (h *Hub) writePump(client *Client, c *fiberws.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.WriteMessage(fiberws.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(fiberws.TextMessage, message); err != nil {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(fiberws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client, c *fiberws.Conn) {
	defer func() {
		h.unregister <- client
	}()

	c.SetReadLimit(maxMessageSize)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("WebSocket unexpected close")
			}
			return
		}
		// clients only receive; inbound frames are ignored
	}
}
