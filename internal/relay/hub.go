package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// subscriber pairs a connection with the mutex that serializes writes to
// it. gorilla/websocket allows at most one concurrent writer per
// connection, and both the owning read loop and broadcasts from other
// connections' loops write here.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(event OutboundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(event)
}

// Hub tracks which connections are subscribed to which conversation and
// fans events out to them. A write failure evicts the connection from
// the group; the read loop notices the broken connection on its own.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*websocket.Conn]struct{}
	conns map[*websocket.Conn]*subscriber
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string]map[*websocket.Conn]struct{}),
		conns: make(map[*websocket.Conn]*subscriber),
	}
}

func (h *Hub) Subscribe(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[conversationID][conn] = struct{}{}
	if h.conns[conn] == nil {
		h.conns[conn] = &subscriber{conn: conn}
	}
	slog.Info("ws: subscribed", "conversation_id", conversationID, "total", len(h.subs[conversationID]))
}

func (h *Hub) Unsubscribe(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[conversationID]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, conversationID)
		}
		slog.Info("ws: unsubscribed", "conversation_id", conversationID)
	}
	for _, subs := range h.subs {
		if _, ok := subs[conn]; ok {
			return
		}
	}
	delete(h.conns, conn)
}

// Broadcast sends the event to every connection subscribed to the
// conversation, including the sender when it is subscribed.
func (h *Hub) Broadcast(conversationID string, event OutboundEvent) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[conversationID]))
	for conn := range h.subs[conversationID] {
		if sub := h.conns[conn]; sub != nil {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.write(event); err != nil {
			slog.Warn("ws: broadcast error (client likely disconnected)", "error", err, "conversation_id", conversationID)
			h.Unsubscribe(conversationID, sub.conn)
		}
	}
}

// Send writes the event to a single connection, serialized against any
// concurrent broadcasts touching it. Connections not yet subscribed have
// no competing writers, so they are written directly.
func (h *Hub) Send(conn *websocket.Conn, event OutboundEvent) error {
	h.mu.RLock()
	sub := h.conns[conn]
	h.mu.RUnlock()
	if sub == nil {
		sub = &subscriber{conn: conn}
	}
	return sub.write(event)
}
