package push

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/session"
)

// SessionResolver finds the session context bound to a bearer token.
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (*session.Context, bool)
}

// Handler upgrades authenticated requests to push connections.
type Handler struct {
	hub      *Hub
	sessions SessionResolver
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket endpoint. allowedOrigins empty accepts any origin.
func NewHandler(hub *Hub, sessions SessionResolver, logger *zap.Logger, allowedOrigins ...string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{hub: hub, sessions: sessions, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP authenticates ?token= (or a bearer header) and starts the pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}

	sess, ok := h.sessions.Lookup(r.Context(), token)
	if !ok || sess.State() != session.Authenticated {
		http.Error(w, `{"error":"session not authenticated"}`, http.StatusUnauthorized)
		return
	}
	user := sess.User()
	if user == nil {
		http.Error(w, `{"error":"session not authenticated"}`, http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("push.upgrade_failed", zap.Error(err))
		return
	}

	c := newConn(ws, h.hub, h.logger, user.UserID, sess.ID())
	if !h.hub.register(c) {
		_ = ws.Close()
		return
	}
	h.logger.Info("push.connected",
		zap.String("user_id", user.UserID),
		zap.String("session_id", sess.ID()))

	go c.writePump()
	go c.readPump()
}

// NewServer returns the dedicated listener serving /ws on port.
func NewServer(port int, h *Handler, readTimeout, idleTimeout time.Duration) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       idleTimeout,
	}
}
