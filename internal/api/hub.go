package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shuffle-empire/shuffle/internal/infra/observability"
)

// ─── Live Feed ──────────────────────────────────────────────────────────────

// Event is the envelope for everything pushed to live clients.
type Event struct {
	Type      string      `json:"type"` // "snapshot", "purchase", "reset", "offline", "error"
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"` // epoch ms
}

// Hub fans events out to SSE and WebSocket subscribers. A subscriber whose
// buffer is full misses that event rather than stalling the others.
type Hub struct {
	mu      sync.Mutex
	clients map[string]chan []byte
	log     *slog.Logger

	// WebSocket connections, closed and drained by Shutdown.
	sockets map[*websocket.Conn]struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[string]chan []byte),
		sockets: make(map[*websocket.Conn]struct{}),
		log:     log.With("component", "hub"),
	}
}

// Publish sends an event to every subscriber.
func (h *Hub) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.log.Error("encode event", "type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- data:
		default:
			h.log.Debug("client too slow, dropping event", "client", id, "type", eventType)
		}
	}
}

// Subscribe registers a client. The returned func unsubscribes and closes
// the channel.
func (h *Hub) Subscribe() (string, <-chan []byte, func()) {
	id := uuid.NewString()
	ch := make(chan []byte, 32)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	observability.StreamClients.Inc()

	var once sync.Once
	return id, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			close(ch)
			observability.StreamClients.Dec()
		})
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ─── Server-Sent Events ─────────────────────────────────────────────────────

// HandleSSE serves the live feed as Server-Sent Events.
// GET /api/live
func (h *Hub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_, ch, unsub := h.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────────────

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is an inbound WebSocket message.
type Command struct {
	Type string `json:"type"` // "action", "purchase", "snapshot", "reset"
	Key  string `json:"key,omitempty"`
	// Confirm must be true for "reset".
	Confirm bool `json:"confirm,omitempty"`
}

// CommandFunc handles one inbound command and returns the reply event.
type CommandFunc func(ctx context.Context, cmd Command) (eventType string, payload interface{})

// client is one WebSocket connection.
type client struct {
	id     string
	conn   *websocket.Conn
	events <-chan []byte
	reply  chan []byte
	log    *slog.Logger
}

// ServeWS upgrades the request and pumps hub events out and commands in.
// The connection ends with the request context or Shutdown, whichever
// comes first.
// GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, handle CommandFunc) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	if !h.track(conn) {
		conn.Close()
		return
	}
	defer h.untrack(conn)

	id, events, unsub := h.Subscribe()
	c := &client{
		id:     id,
		conn:   conn,
		events: events,
		reply:  make(chan []byte, 8),
		log:    h.log.With("client", id),
	}
	c.log.Info("websocket connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		// Unblocks ReadMessage when the server context ends.
		<-ctx.Done()
		conn.Close()
	}()
	go c.writePump(ctx)
	c.readPump(ctx, handle)

	cancel()
	unsub()
	conn.Close()
	c.log.Info("websocket disconnected")
}

func (h *Hub) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sockets[conn] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.sockets, conn)
	h.mu.Unlock()
	h.wg.Done()
}

// Shutdown closes every WebSocket connection, refuses new ones, and waits
// for their handlers to return. No command reaches the engine after it
// returns nil.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for conn := range h.sockets {
		conn.Close()
	}
	n := len(h.sockets)
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.log.Debug("websocket clients closed", "count", n)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump decodes commands until the connection fails. It runs on the
// handler goroutine.
func (c *client) readPump(ctx context.Context, handle CommandFunc) {
	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}

		var cmd Command
		var eventType string
		var payload interface{}
		if err := json.Unmarshal(msg, &cmd); err != nil {
			eventType, payload = "error", errorBody("invalid command: "+err.Error())
		} else if handle == nil {
			eventType, payload = "error", errorBody("commands not accepted")
		} else {
			eventType, payload = handle(ctx, cmd)
		}

		data, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UnixMilli()})
		if err != nil {
			continue
		}
		select {
		case c.reply <- data:
		case <-ctx.Done():
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var data []byte
		select {
		case <-ctx.Done():
			return
		case d, ok := <-c.events:
			if !ok {
				return
			}
			data = d
		case data = <-c.reply:
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Debug("websocket write failed", "error", err)
			c.conn.Close()
			return
		}
	}
}
