// WebSocket fan-out for change notifications. Connected clients learn that a
// workspace advanced and are expected to pull over HTTP; the socket never
// carries change payloads.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Saluana/or3-chat-sub017/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Workspace auth happens in the session layer; the socket itself
		// only leaks version numbers.
		return true
	},
}

// WSClient represents a WebSocket client connection. mu guards send's
// lifecycle and the workspace set: the hub goroutine filters and evicts
// while readPump mutates subscriptions and emits acks concurrently.
type WSClient struct {
	id   string
	conn *websocket.Conn
	hub  *WSHub

	mu         sync.Mutex
	send       chan []byte
	closed     bool
	workspaces map[string]bool
}

// trySend queues a message without blocking. Returns false when the client
// is closed or its buffer is full; it never panics on a closed channel.
func (c *WSClient) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// close marks the client closed and closes its send channel exactly once,
// which ends writePump. Safe against concurrent trySend.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WSClient) subscribe(workspaceID string) {
	c.mu.Lock()
	c.workspaces[workspaceID] = true
	c.mu.Unlock()
}

func (c *WSClient) unsubscribe(workspaceID string) {
	c.mu.Lock()
	delete(c.workspaces, workspaceID)
	c.mu.Unlock()
}

// watches reports whether the client should receive events for the
// workspace. Clients with no explicit subscription receive all workspaces.
func (c *WSClient) watches(workspaceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workspaces) == 0 || c.workspaces[workspaceID]
}

// WSHub maintains active client connections and fans out notifications.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

type wsMessage struct {
	workspaceID string
	payload     []byte
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

const (
	EventChanges = "sync.changes"
	EventPruned  = "sync.pruned"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("websocket client connected", map[string]interface{}{
				"client": client.id,
				"total":  total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("websocket client disconnected", map[string]interface{}{
				"client": client.id,
				"total":  total,
			})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				if !client.watches(msg.workspaceID) {
					continue
				}
				if !client.trySend(msg.payload) {
					// Client send buffer is full, close connection
					client.close()
					delete(h.clients, client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every client watching workspaceID. Clients
// with no explicit subscription receive all workspaces.
func (h *WSHub) Broadcast(eventType, workspaceID string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal websocket message", err)
		return
	}

	h.broadcast <- wsMessage{workspaceID: workspaceID, payload: bytes}
}

// BroadcastChanges tells watchers that a workspace's log advanced.
func (h *WSHub) BroadcastChanges(workspaceID string, serverVersion int64) {
	h.Broadcast(EventChanges, workspaceID, map[string]interface{}{
		"workspaceId":   workspaceID,
		"serverVersion": serverVersion,
	})
}

// BroadcastPruned tells watchers that retention collection removed records.
func (h *WSHub) BroadcastPruned(workspaceID string, deleted int64) {
	h.Broadcast(EventPruned, workspaceID, map[string]interface{}{
		"workspaceId": workspaceID,
		"deleted":     deleted,
	})
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket read error", map[string]interface{}{"error": err.Error()})
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		action, ok := msg["action"].(string)
		if !ok {
			continue
		}

		switch action {
		case "subscribe":
			if workspaces, ok := msg["workspaces"].([]interface{}); ok {
				for _, w := range workspaces {
					if ws, ok := w.(string); ok {
						c.subscribe(ws)
					}
				}
				c.sendAck("subscribe_ack", workspaces)
			}

		case "unsubscribe":
			if workspaces, ok := msg["workspaces"].([]interface{}); ok {
				for _, w := range workspaces {
					if ws, ok := w.(string); ok {
						c.unsubscribe(ws)
					}
				}
			}

		case "ping":
			c.sendPong()
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendAck sends a subscription acknowledgment. Dropped if the client is
// closed or backed up.
func (c *WSClient) sendAck(action string, workspaces []interface{}) {
	envelope := map[string]interface{}{
		"action":     action,
		"subscribed": workspaces,
		"timestamp":  time.Now().Unix(),
	}

	bytes, _ := json.Marshal(envelope)
	c.trySend(bytes)
}

// sendPong sends a pong response.
func (c *WSClient) sendPong() {
	envelope := map[string]interface{}{
		"action":    "pong",
		"timestamp": time.Now().Unix(),
	}

	bytes, _ := json.Marshal(envelope)
	c.trySend(bytes)
}

// HandleWebSocket handles WebSocket connections.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:         uuid.NewString(),
			conn:       conn,
			send:       make(chan []byte, 256),
			hub:        hub,
			workspaces: make(map[string]bool),
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
