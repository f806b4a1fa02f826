package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketpulse/internal/controller"
)

const (
	wsPingInterval = 45 * time.Second
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient is a single websocket connection managed by a Hub.
type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

// Hub fans controller changes out to every connected websocket client.
type Hub struct {
	ctrl *controller.Controller
	log  *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a Hub for ctrl.
func NewHub(ctrl *controller.Controller, log *slog.Logger) *Hub {
	return &Hub{
		ctrl:    ctrl,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run forwards controller changes to clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	id, ch := h.ctrl.Subscribe(64)
	defer h.ctrl.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case chg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(WSMessage{Type: "change", Kind: chg.Kind, State: chg.State})
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client, drop.
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeWS upgrades the connection, sends the full state and then streams
// changes until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn, send: make(chan WSMessage, wsSendBuffer)}
	h.register(c)
	defer h.unregister(c)
	c.send <- WSMessage{Type: "state", State: h.ctrl.State()}

	done := make(chan struct{})
	defer close(done)
	go c.writePump(done, h.log)

	// Reader: only pongs and close frames are expected.
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump(done <-chan struct{}, log *slog.Logger) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Debug("websocket write", "error", err)
				c.conn.Close()
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
