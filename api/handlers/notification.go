package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type hubClient struct {
	userID string
	conn   *websocket.Conn
	send   chan models.ReportEvent
}

// NotificationHub streams report lifecycle events to connected moderators
type NotificationHub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewNotificationHub returns an empty hub
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[*hubClient]struct{})}
}

// Publish queues ev for every connected moderator. Slow clients miss events rather than
// holding up moderation.
func (h *NotificationHub) Publish(ctx context.Context, ev models.ReportEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			zap.S().Warnw("dropping report event for slow websocket client", "userId", c.userID, "event", ev.Type)
		}
	}
}

// Clients returns the number of connected moderators
func (h *NotificationHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleReportsWebSocket upgrades the request and streams events until the client leaves
func (h *NotificationHub) HandleReportsWebSocket(w http.ResponseWriter, r *http.Request) {
	u, _ := session.CurrentUser(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("WebSocket upgrade error", "error", err)
		return
	}

	c := &hubClient{userID: u.ID, conn: conn, send: make(chan models.ReportEvent, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	zap.S().Infow("moderator connected to /ws/reports", "userId", u.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]interface{}{"event": ev.Type, "data": ev}); err != nil {
				zap.S().Debugw("failed to write report event", "userId", u.ID, "error", err)
				return
			}
		}
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	<-done
	conn.Close()
	zap.S().Infow("moderator disconnected from /ws/reports", "userId", u.ID)
}
