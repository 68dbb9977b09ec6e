// Package push tracks live WebSocket connections and implements the
// delivery side of the fan-out engine.
package push

import (
	"context"
	"fmt"
	"sync"

	"threadcast/pkg/fanout"
	"threadcast/pkg/logger"
	"threadcast/pkg/metrics"
)

// Hub tracks attached connections by id. It implements fanout.Pusher: a
// push to an id the hub does not know reports the connection as gone,
// which is how stale subscriptions get detected (explicit disconnect
// notifications are unreliable).
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	c.Start()
	metrics.Connections.Inc()
	logger.Info("connection_attached", "connection", c.ID, "user", c.UserID)
}

// Detach removes a connection if it is still tracked and closes it.
func (h *Hub) Detach(c *Conn) {
	h.mu.Lock()
	_, tracked := h.conns[c.ID]
	delete(h.conns, c.ID)
	h.mu.Unlock()
	if tracked {
		metrics.Connections.Dec()
		logger.Info("connection_detached", "connection", c.ID, "user", c.UserID)
	}
	c.Close(1000, "detached")
}

// Push delivers one serialized batch to one connection. An unknown or
// already-closed connection yields fanout.ErrConnectionGone; other write
// failures are transient and must not trigger cleanup.
func (h *Hub) Push(ctx context.Context, connectionID string, payload []byte) error {
	h.mu.RLock()
	c := h.conns[connectionID]
	h.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("push to %s: %w", connectionID, fanout.ErrConnectionGone)
	}
	if err := c.Send(payload); err != nil {
		if err == errConnClosed {
			return fmt.Errorf("push to %s: %w", connectionID, fanout.ErrConnectionGone)
		}
		return fmt.Errorf("push to %s: %w", connectionID, err)
	}
	return nil
}

// Close terminates all tracked connections.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()
	for _, c := range conns {
		metrics.Connections.Dec()
		c.Close(1001, "hub shutdown")
	}
}
