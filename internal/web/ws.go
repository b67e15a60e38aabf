package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uiforge/uiforge/internal/observability"
	"github.com/uiforge/uiforge/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// MessageTypeHistory tags a pushed session state.
const MessageTypeHistory = "history"

// Message is the envelope pushed to WebSocket clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans session state changes out to connected WebSocket clients.
// Clients are read-only: anything they send is discarded.
type Hub struct {
	sess     *session.Session
	metrics  *observability.Metrics
	logger   *observability.Logger
	upgrader websocket.Upgrader
	cancel   func()

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub and subscribes it to sess.
func NewHub(sess *session.Session, m *observability.Metrics, logger *observability.Logger) *Hub {
	h := &Hub{
		sess:    sess,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*wsClient]struct{}),
	}
	h.cancel = sess.Subscribe(h.Broadcast)
	return h
}

// ServeHTTP upgrades the request and registers the client. The current
// state is queued before any later broadcast.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if data, err := encodeState(h.sess.State()); err == nil {
		c.send <- data
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWSClients(n)
	h.logger.Debug("client connected", "remote", r.RemoteAddr, "clients", n)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast pushes state to every client. A client whose buffer is full is
// dropped rather than blocking the session.
func (h *Hub) Broadcast(state session.State) {
	data, err := encodeState(state)
	if err != nil {
		h.logger.Error("encode state", "error", err)
		return
	}

	h.mu.Lock()
	var dropped []*wsClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	if len(dropped) > 0 {
		h.logger.Warn("dropped slow clients", "count", len(dropped))
		h.metrics.SetWSClients(n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the session and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()

	h.cancel()
	h.metrics.SetWSClients(0)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.metrics.SetWSClients(n)
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func encodeState(state session.State) ([]byte, error) {
	return json.Marshal(Message{Type: MessageTypeHistory, Payload: state})
}
