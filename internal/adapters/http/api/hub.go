package api

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientBytes = 512
	sendBuffer     = 16
)

// Event types sent to websocket clients.
const (
	EventConnected = "connected"
	EventEpoch     = "epoch"
)

// EpochEvent announces the epoch being served.
type EpochEvent struct {
	Type        string         `json:"type"`
	Epoch       model.Epoch    `json:"epoch"`
	RunID       string         `json:"run_id,omitempty"`
	CommittedAt *time.Time     `json:"committed_at,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans committed epochs out to websocket clients. A client that cannot
// keep up is disconnected rather than slowing the broadcast.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	last     EpochEvent
	closed   bool
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins restricts upgrades to the given Origin headers.
// Empty, or a list containing "*", accepts any origin.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
}

// NewHub creates a hub that accepts any origin unless restricted.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: map[*client]struct{}{},
		last:    EpochEvent{Type: EventEpoch},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Named("ws-hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EpochAdvanced implements ingest.EpochListener.
func (h *Hub) EpochAdvanced(ctx context.Context, snap *model.Snapshot) {
	committed := snap.CommittedAt
	ev := EpochEvent{
		Type:        EventEpoch,
		Epoch:       snap.Epoch,
		RunID:       snap.RunID,
		CommittedAt: &committed,
		Counts:      snap.Counts(),
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(ctx, "marshal epoch event", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = ev
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn(ctx, "dropped slow websocket clients",
			logger.Int("dropped", dropped),
			logger.Error(ErrSlowClient))
	}
}

// ServeHTTP upgrades the request and streams epoch events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ErrHubClosed.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// add registers c and queues the greeting with the epoch currently served.
func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	hello := h.last
	hello.Type = EventConnected
	if msg, err := json.Marshal(hello); err == nil {
		c.send <- msg
	}
	h.clients[c] = struct{}{}
	metrics.UpdateWebsocketClients(len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.UpdateWebsocketClients(len(h.clients))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxClientBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients have nothing to say; reads only drive control frames
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(context.Background(), "websocket read failed", logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
