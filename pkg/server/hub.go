package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// eventEnvelope is the wire format of the event feed.
type eventEnvelope struct {
	Type string      `json:"type"`
	Data types.Event `json:"data"`
}

// Hub fans protocol events out to websocket subscribers.
type Hub struct {
	logger   *zap.Logger
	buses    []*types.Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub over the given event buses.
func NewHub(logger *zap.Logger, buses ...*types.Bus) *Hub {
	return &Hub{
		logger: logger,
		buses:  buses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Run subscribes to every bus and broadcasts until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for _, bus := range h.buses {
		events, cancel := bus.Subscribe()
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					h.broadcast(ev)
				}
			}
		}()
	}
}

// Handler upgrades the request and registers the connection.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go h.keepAlive(conn)
	go h.drainReads(conn)
}

func (h *Hub) broadcast(ev types.Event) {
	env := eventEnvelope{Type: ev.EventType(), Data: ev}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			h.drop(conn)
		}
	}
}

func (h *Hub) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		_, alive := h.conns[conn]
		if alive {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(conn)
				alive = false
			}
		}
		h.mu.Unlock()
		if !alive {
			return
		}
	}
}

// drainReads consumes control frames; clients never send data.
func (h *Hub) drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.mu.Lock()
			h.drop(conn)
			h.mu.Unlock()
			return
		}
	}
}

// drop removes and closes a connection. Callers hold h.mu.
func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
}
