// Package relay carries the outbound JSON telemetry (arpa/encounters/cbf
// and record passthroughs) to visualization clients over WebSocket, and
// dispatches inbound control messages back to the coordinator. Adapted
// from the teacher's internal/livefeed/streamer.go Hub/Client pattern.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	clientBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ControlMessage is the decoded shape of an inbound §6.4 payload.
type ControlMessage struct {
	Type    string          `json:"type"`
	Content ControlContent  `json:"content"`
}

type ControlContent struct {
	MessageID string          `json:"message_id"`
	Data      json.RawMessage `json:"data"`
}

// ControlHandler is invoked for every inbound control message.
type ControlHandler func(ControlMessage)

// Client wraps one WebSocket connection with a buffered send channel so a
// slow reader never blocks the hub's broadcast.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans outbound JSON to all registered clients and routes inbound
// control messages to a single handler owned by the coordinator.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	onControl ControlHandler
	logger    *logrus.Logger
}

// SetControlHandler installs the inbound control-message handler. Useful
// when the handler needs a reference to the hub itself (e.g. a coordinator
// constructed after the hub), breaking the construction cycle.
func (h *Hub) SetControlHandler(onControl ControlHandler) {
	h.mu.Lock()
	h.onControl = onControl
	h.mu.Unlock()
}

func NewHub(logger *logrus.Logger, onControl ControlHandler) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		onControl:  onControl,
		logger:     logger,
	}
}

// Run owns the clients map for the hub's lifetime; cancel ctx to stop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// ServeHTTP upgrades the request and spins up the client's read/write
// pumps. Mount at the relay's WS path (see SPEC_FULL.md §6.2).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("relay: websocket upgrade failed")
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, clientBuffer), hub: h}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// Broadcast marshals {"type":"datain","content":{"message_id":...,
// "data":...}} and fans it to every client, dropping the oldest queued
// frame for any client whose buffer is full rather than blocking.
func (h *Hub) Broadcast(messageID string, data any) {
	payload, err := json.Marshal(map[string]any{
		"type": "datain",
		"content": map[string]any{
			"message_id": messageID,
			"data":       data,
		},
	})
	if err != nil {
		h.logger.WithError(err).Warn("relay: failed to marshal outbound payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

func (h *Hub) dispatchControl(msg ControlMessage) {
	h.mu.RLock()
	handler := h.onControl
	h.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.logger.WithError(err).Warn("relay: dropped malformed control message")
			continue
		}
		c.hub.dispatchControl(msg)
	}
}
