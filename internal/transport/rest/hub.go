package rest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/composer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// newUpgrader accepts upgrades only from the allowed origins. CORS headers do
// not apply to WebSocket handshakes, so the origin is checked here. An empty
// list or "*" allows any origin.
func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no origin
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Hub fans composer signals out to the WebSocket connections of each session.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]map[*wsClient]struct{}
	lastVersion map[string]uint64
	logger      *zap.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]map[*wsClient]struct{}),
		lastVersion: make(map[string]uint64),
		logger:      logger,
	}
}

// Notify implements service.Notifier. Draft updates older than the last one
// delivered for the session are dropped; submission signals always go out.
func (h *Hub) Notify(sessionID string, ev composer.Event) {
	h.mu.Lock()
	if ev.Kind == composer.EventDraftChanged && ev.Snapshot.Version <= h.lastVersion[sessionID] {
		h.mu.Unlock()
		return
	}
	if ev.Snapshot.Version > h.lastVersion[sessionID] {
		h.lastVersion[sessionID] = ev.Snapshot.Version
	}
	h.mu.Unlock()

	draft := draftFromSnapshot(ev.Snapshot)
	h.broadcast(sessionID, signal{Type: ev.Kind.String(), Draft: &draft})
}

func (h *Hub) Haptic(sessionID string, style string) {
	h.broadcast(sessionID, signal{Type: "haptic", Style: style})
}

// Forget implements service.Notifier. It drops the session's bookkeeping and
// disconnects its clients.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[sessionID] {
		close(c.send)
	}
	delete(h.clients, sessionID)
	delete(h.lastVersion, sessionID)
}

func (h *Hub) broadcast(sessionID string, sig signal) {
	message, err := json.Marshal(sig)
	if err != nil {
		h.logger.Error("marshal signal", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[sessionID] {
		select {
		case c.send <- message:
		default:
			h.logger.Warn("signal dropped, client buffer full",
				zap.String("session_id", sessionID),
				zap.String("type", sig.Type),
			)
		}
	}
}

func (h *Hub) register(sessionID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*wsClient]struct{})
	}
	h.clients[sessionID][c] = struct{}{}
}

func (h *Hub) unregister(sessionID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sessionID][c]; ok {
		delete(h.clients[sessionID], c)
		close(c.send)
	}
}

// serve upgrades the request and pumps signals until either side closes.
func (h *Hub) serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, sessionID string, initial signal) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err),
		)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if message, err := json.Marshal(initial); err == nil {
		c.send <- message
	}
	h.register(sessionID, c)

	go c.writePump()
	c.readPump()
	h.unregister(sessionID, c)
}

// readPump only handles control frames; the panel sends intents over REST.
func (c *wsClient) readPump() {
	defer c.conn.Close()

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

func (c *wsClient) writePump() {
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
