package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/injops/dashboard/internal/metrics"
	"github.com/injops/dashboard/internal/store"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Subscriber is the pub/sub side of store.Cache.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *store.Subscription
}

// Hub relays page refresh notifications to connected browsers.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	source     Subscriber
	upgrader   websocket.Upgrader
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	mu    sync.RWMutex
	pages map[string]bool // empty means every page
}

// pageEvent is the part of a refresh notification the hub routes on.
type pageEvent struct {
	Type string `json:"type"`
	Page string `json:"page"`
}

// SubscriptionRequest narrows the pages a client hears about.
type SubscriptionRequest struct {
	Type  string   `json:"type"`
	Pages []string `json:"pages"`
}

// NewHub builds a hub. Connections whose Origin is not in allowedOrigins are
// refused; same-origin requests without an Origin header are always accepted.
func NewHub(source Subscriber, allowedOrigins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		source:     source,
		logger:     logger,
		metrics:    m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	sub := h.source.Subscribe(ctx, store.ChannelPageRefreshed)
	defer sub.Close()
	messages := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			if h.drop(client) {
				h.metrics.DecrementConnections(ctx)
				h.logger.Debugw("Client unregistered", "remote", client.conn.RemoteAddr().String())
			}

		case msg, ok := <-messages:
			if !ok {
				h.logger.Warnw("Refresh subscription closed; WebSocket notifications stopped")
				messages = nil
				continue
			}
			h.broadcast(ctx, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, payload []byte) {
	var event pageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warnw("Dropping malformed refresh notification", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(event.Page) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// slow consumer
			delete(h.clients, client)
			close(client.send)
			h.metrics.DecrementConnections(ctx)
		}
	}
}

func (h *Hub) drop(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		pages: make(map[string]bool),
	}
	for _, p := range r.URL.Query()["page"] {
		client.pages[p] = true
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) wants(page string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages) == 0 || c.pages[page]
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnw("WebSocket read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(message)
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch req.Type {
	case "subscribe":
		for _, p := range req.Pages {
			c.pages[p] = true
		}
	case "unsubscribe":
		for _, p := range req.Pages {
			delete(c.pages, p)
		}
	default:
		return
	}
	c.hub.logger.Debugw("Client subscription changed", "type", req.Type, "pages", req.Pages)
}
