// Package stream pushes dashboard snapshots to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"healthguard/internal/monitor"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	// pingPeriod must stay below pongWait.
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 16
)

// Events carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventChange   = "change"
)

// Source provides the dashboard the hub sends on connect and on keep-alive.
type Source interface {
	Current() (monitor.Dashboard, time.Time)
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event     string            `json:"event"`
	Source    string            `json:"source,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Data      monitor.Dashboard `json:"data"`
}

// Hub tracks websocket clients. Every change is pushed as it happens and
// the current snapshot is re-sent every interval.
type Hub struct {
	source   Source
	interval time.Duration
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub. allowedOrigins of nil or containing "*" accepts any
// origin.
func New(source Source, interval time.Duration, allowedOrigins []string, logger zerolog.Logger) *Hub {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	h := &Hub{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "stream").Logger(),
		clients:  make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 ||
				slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run sends the snapshot every interval until ctx is cancelled, then closes
// all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(h.snapshotMessage())
		}
	}
}

// Publish pushes a change to every client. It never blocks; it is meant to
// be registered as a monitor listener.
func (h *Hub) Publish(c monitor.Change) {
	h.broadcast(Message{Event: EventChange, Source: c.Source, UpdatedAt: c.AppliedAt, Data: c.Current})
}

// ServeHTTP upgrades the connection, sends the current snapshot and then
// streams broadcasts until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	if data, err := json.Marshal(h.snapshotMessage()); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshotMessage() Message {
	d, at := h.source.Current()
	return Message{Event: EventSnapshot, UpdatedAt: at, Data: d}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug().Int("clients", h.Count()).Msg("client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast sends under the read lock so unregister cannot close a channel
// mid-send. Clients with a full buffer are dropped.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal stream message")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Msg("dropping slow stream client")
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
