// Package ws fans live updates out to websocket subscribers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applogger "PowerLedger/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	sendBuffer   = 64
)

// Envelope is what subscribers receive.
type Envelope struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
	SentAt  time.Time   `json:"sent_at"`
}

type client struct {
	conn     *websocket.Conn
	channels map[string]bool
	send     chan []byte
	done     chan struct{}
}

func (c *client) wants(channel string) bool {
	return len(c.channels) == 0 || c.channels[channel]
}

// Hub tracks subscribers. Broadcast never blocks: a subscriber whose buffer
// is full misses the message.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      *applogger.Logger
}

func NewHub(log *applogger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers payload to every subscriber of channel.
func (h *Hub) Broadcast(channel string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Channel: channel, Data: payload, SentAt: time.Now().UTC()})
	if err != nil {
		h.log.Warn("ws marshal failed", applogger.String("channel", channel), applogger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ServeHTTP upgrades the request. The optional channel query parameter,
// repeated, limits what the client receives.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", applogger.Error(err))
		return
	}

	c := &client{
		conn:     conn,
		channels: make(map[string]bool),
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	for _, ch := range r.URL.Query()["channel"] {
		c.channels[ch] = true
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	}()

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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}
