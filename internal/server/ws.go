package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/server/api"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// sendBuffer is how many results may queue for a slow client before
	// further results are dropped for it.
	sendBuffer = 32
	maxMessage = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI only
	},
}

// Message is one websocket message sent to clients.
type Message struct {
	Type   string         `json:"type"`
	Result *engine.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Kind   string         `json:"kind,omitempty"`
}

// Message types.
const (
	MessageResult = "result"
	MessageError  = "error"
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session results out to websocket clients. Clients may also send
// frames, which are processed through the session; their results arrive
// through Broadcast like any other.
type Hub struct {
	session api.Session
	metrics *observe.Metrics

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a Hub. session may be nil for a broadcast-only hub;
// metrics may be nil.
func NewHub(session api.Session, metrics *observe.Metrics) *Hub {
	return &Hub{
		session: session,
		metrics: metrics,
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast sends r to every connected client.
func (h *Hub) Broadcast(r engine.Result) {
	data, err := json.Marshal(Message{Type: MessageResult, Result: &r})
	if err != nil {
		slog.Error("encode websocket result", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.conn.Close()
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.trackClients(r.Context(), 1)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.writePump(c, done)
	}()
	h.readPump(r.Context(), c)

	h.unregister(c)
	h.trackClients(r.Context(), -1)
	close(done)
	<-stopped
	conn.Close()
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) trackClients(ctx context.Context, delta int64) {
	if h.metrics != nil {
		h.metrics.StreamClients.Add(ctx, delta)
	}
}

// readPump processes incoming frames until the connection fails.
func (h *Hub) readPump(ctx context.Context, c *wsClient) {
	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "err", err)
			}
			return
		}
		if h.session == nil {
			continue
		}

		var frame engine.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(c, Message{Type: MessageError, Error: "invalid frame json", Kind: "input"})
			continue
		}
		if _, err := h.session.ProcessFrame(ctx, observe.SourceWS, frame); err != nil {
			h.reply(c, Message{Type: MessageError, Error: err.Error(), Kind: observe.ErrorKind(err)})
		}
	}
}

func (h *Hub) reply(c *wsClient, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump is the only writer of c.conn.
func (h *Hub) writePump(c *wsClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					slog.Debug("websocket write failed", "err", err)
				}
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
