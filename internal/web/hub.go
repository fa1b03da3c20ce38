package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"storyweaver/server/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a WebSocket client following one session's progress
type Client struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *ProgressHub
	mu        sync.Mutex
	closed    bool
}

// ProgressHub fans chapter progress out to the WebSocket clients of each
// session and remembers the latest update per session.
type ProgressHub struct {
	clients    map[string]map[string]*Client
	latest     map[string]engine.Progress
	register   chan *Client
	unregister chan *Client
	broadcast  chan engine.Progress
	done       chan struct{}
	mu         sync.RWMutex

	clientCount atomic.Int64
	dropped     atomic.Int64
	logger      *zap.Logger
}

// NewProgressHub creates a new progress hub
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{
		clients:    make(map[string]map[string]*Client),
		latest:     make(map[string]engine.Progress),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan engine.Progress, 1000),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "progress_hub")),
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *ProgressHub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case p := <-h.broadcast:
			h.broadcastProgress(p)
		}
	}
}

func (h *ProgressHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.SessionID] == nil {
		h.clients[client.SessionID] = make(map[string]*Client)
	}
	h.clients[client.SessionID][client.ID] = client
	total := h.clientCount.Inc()
	h.logger.Debug("client connected",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
		zap.Int64("total", total))

	if p, ok := h.latest[client.SessionID]; ok {
		if data, err := progressMessage(p); err == nil {
			client.Send <- data
		}
	}

	go client.writePump()
}

func (h *ProgressHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.SessionID]
	if _, ok := clients[client.ID]; ok {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.clients, client.SessionID)
		}
		close(client.Send)
		total := h.clientCount.Dec()
		h.logger.Debug("client disconnected",
			zap.String("client_id", client.ID),
			zap.Int64("total", total))
	}
}

func (h *ProgressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, clients := range h.clients {
		for _, client := range clients {
			close(client.Send)
			h.clientCount.Dec()
		}
		delete(h.clients, sessionID)
	}
}

func progressMessage(p engine.Progress) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "progress",
		"data": p,
		"time": time.Now().Unix(),
	})
}

func (h *ProgressHub) broadcastProgress(p engine.Progress) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[p.SessionID]
	if len(clients) == 0 {
		return
	}

	data, err := progressMessage(p)
	if err != nil {
		h.logger.Error("failed to marshal progress", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.dropped.Inc()
			h.logger.Warn("client send buffer full", zap.String("client_id", client.ID))
		}
	}
}

// Publish records p as the latest progress of its session and forwards it
// to that session's clients. It never blocks.
func (h *ProgressHub) Publish(p engine.Progress) {
	h.mu.Lock()
	h.latest[p.SessionID] = p
	h.mu.Unlock()

	select {
	case h.broadcast <- p:
	default:
		h.dropped.Inc()
		h.logger.Warn("broadcast channel full, dropping progress", zap.String("session_id", p.SessionID))
	}
}

// Latest returns the last progress published for sessionID.
func (h *ProgressHub) Latest(sessionID string) (engine.Progress, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.latest[sessionID]
	return p, ok
}

// Clear forgets the progress of sessionID.
func (h *ProgressHub) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, sessionID)
}

// ClientCount returns the number of connected clients
func (h *ProgressHub) ClientCount() int64 {
	return h.clientCount.Load()
}

// Dropped returns how many progress messages were not delivered.
func (h *ProgressHub) Dropped() int64 {
	return h.dropped.Load()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("write failed", zap.String("client_id", c.ID), zap.Error(err))
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("ping failed", zap.String("client_id", c.ID), zap.Error(err))
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.Conn.Close()
}

// readPump drains the connection so pongs and close frames are handled.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("unexpected close", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
	}
}
