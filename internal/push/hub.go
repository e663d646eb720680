// Package push delivers portal events to browsers over websockets.
package push

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Message types sent to the browser.
const (
	TypeNotification      = "notification"
	TypeInstructionStatus = "instruction_status"
	TypeSessionEnded      = "session_ended"
)

// Message is the JSON frame written to a connection.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks open connections per user and fans bus events out to them.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	conns  map[string]map[*conn]struct{}
	closed bool

	unsubs []func()
}

// NewHub creates a hub subscribed to notification, instruction status and
// session events on bus.
func NewHub(bus *eventbus.Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger: logger,
		conns:  make(map[string]map[*conn]struct{}),
	}
	h.unsubs = append(h.unsubs,
		eventbus.Subscribe(bus, func(e model.NotificationCreated) {
			h.Broadcast(e.Notification.UserID, Message{Type: TypeNotification, Data: e.Notification, Timestamp: e.Notification.Timestamp})
		}),
		// portal user ids equal client ids
		eventbus.Subscribe(bus, func(e model.InstructionStatusChanged) {
			h.Broadcast(e.ClientID, Message{Type: TypeInstructionStatus, Data: e, Timestamp: e.Timestamp})
		}),
		eventbus.Subscribe(bus, h.onSessionEnded),
	)
	return h
}

// Broadcast writes msg to every connection of userID. Slow connections whose
// buffer is full are dropped.
func (h *Hub) Broadcast(userID string, msg Message) int {
	if userID == "" {
		return 0
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("push.marshal_failed", zap.String("type", msg.Type), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(data) {
			sent++
			continue
		}
		h.logger.Warn("push.slow_consumer_dropped",
			zap.String("user_id", userID),
			zap.String("session_id", c.sessionID))
		h.unregister(c)
	}
	return sent
}

// Connections returns the number of open connections for userID, or all
// connections when userID is empty.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userID != "" {
		return len(h.conns[userID])
	}
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// Close unsubscribes from the bus and closes every connection.
func (h *Hub) Close() {
	for _, u := range h.unsubs {
		u()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.conns = make(map[string]map[*conn]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
		metrics.PushConnections.Dec()
	}
}

func (h *Hub) register(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.PushConnections.Inc()
	return true
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	set := h.conns[c.userID]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
	h.mu.Unlock()

	if ok {
		c.close()
		metrics.PushConnections.Dec()
	}
}

// onSessionEnded tells and then disconnects the sockets opened by the session.
func (h *Hub) onSessionEnded(e model.SessionEnded) {
	data, err := json.Marshal(Message{Type: TypeSessionEnded, Data: e, Timestamp: e.Timestamp})
	if err != nil {
		return
	}

	h.mu.RLock()
	var targets []*conn
	for c := range h.conns[e.UserID] {
		if c.sessionID == e.SessionID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
		c.finish()
		h.unregisterLater(c)
	}
}

// unregisterLater removes c once its writer has flushed the final frame.
func (h *Hub) unregisterLater(c *conn) {
	go func() {
		<-c.done
		h.unregister(c)
	}()
}
