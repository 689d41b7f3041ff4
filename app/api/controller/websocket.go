package controller

import (
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kevmine/kevminex/pkg/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// HandleWebSocket upgrades the connection and attaches a delivery session for
// the authenticated account. Connecting again replaces the previous session.
//
// Server sends:
// - {"type": "bonus_granted", "payload": {...}}
// - {"type": "settings_updated", "payload": {...}}
// - {"type": "leaderboard_updated", "payload": {...}}
// - {"type": "user_connected", "payload": {...}}     // admins only
// - {"type": "user_disconnected", "payload": {...}}  // admins only
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	session := realtime.NewSession(uuid.NewString(), id.AccountID, id.Admin, c.App.Logger)
	c.App.Registry.Register(session)
	c.App.Logger.Info("WebSocket client connected",
		zap.String("account_id", id.AccountID),
		zap.String("remote_addr", r.RemoteAddr))
	c.App.Registry.BroadcastPrivileged("user_connected", map[string]any{
		"accountId": id.AccountID,
		"name":      id.Name,
		"online":    c.App.Registry.Online(),
	})

	var wg sync.WaitGroup

	// Writer drains the session until it is closed.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in WebSocket writer goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("account_id", id.AccountID))
			}
		}()
		c.writeEvents(conn, session)
	}()

	// Read loop detects disconnects and keeps the pong deadline fresh.
	// This blocks until the connection closes.
	c.readUntilClosed(conn)

	c.App.Registry.Unregister(session)
	session.Close()
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("account_id", id.AccountID))
	c.App.Registry.BroadcastPrivileged("user_disconnected", map[string]any{
		"accountId": id.AccountID,
		"name":      id.Name,
		"online":    c.App.Registry.Online(),
	})
}

// writeEvents forwards session events to the connection and pings on an
// interval. Returns when the session channel closes or a write fails.
func (c *Controller) writeEvents(conn *websocket.Conn, session *realtime.Session) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				c.App.Logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed consumes inbound frames. Clients do not send application
// messages; the loop exists for close detection and pong handling.
func (c *Controller) readUntilClosed(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.App.Logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}
