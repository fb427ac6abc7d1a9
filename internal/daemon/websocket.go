package daemon

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sherpa/internal/bus"
	"sherpa/internal/logging"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Overlay clients connect from local Electron windows with arbitrary
	// origins, so the origin check stays open.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn adapts one websocket connection to bus.Conn. Outbound notifications
// go through a buffered channel drained by a single writer goroutine; Send
// never blocks the emitting caller.
type wsConn struct {
	id     string
	socket *websocket.Conn
	send   chan bus.Notification

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(socket *websocket.Conn, buffer int) *wsConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsConn{
		id:     uuid.NewString(),
		socket: socket,
		send:   make(chan bus.Notification, buffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(n bus.Notification) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- n:
		return nil
	default:
		return errSendBufferFull
	}
}

var errSendBufferFull = &bufferFullError{}

type bufferFullError struct{}

func (*bufferFullError) Error() string { return "send buffer full" }

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.Close()
	})
}

// handleWebsocket upgrades the connection and joins the caller's room. The
// room key is the user_id query parameter. Disconnect leaves every room the
// connection joined.
func (s *apiServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	conn := newWSConn(socket, s.daemon.cfg.Bus.SendBuffer)
	s.daemon.registry.Join(userID, conn)

	go s.writePump(conn)
	go s.readPump(conn, userID)
}

func (s *apiServer) writePump(conn *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-conn.done:
			return
		case n := <-conn.send:
			_ = conn.socket.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.socket.WriteJSON(n); err != nil {
				conn.close()
				return
			}
		case <-ticker.C:
			_ = conn.socket.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.close()
				return
			}
		}
	}
}

// readPump discards inbound frames; clients only listen. It exists to detect
// disconnects and keep the pong handler serviced.
func (s *apiServer) readPump(conn *wsConn, userID string) {
	defer func() {
		s.daemon.registry.Leave(conn)
		conn.close()
	}()

	conn.socket.SetReadLimit(4096)
	_ = conn.socket.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.socket.SetPongHandler(func(string) error {
		return conn.socket.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := conn.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed unexpectedly",
					logging.String(logging.FieldUserID, userID),
					logging.Error(err))
			}
			return
		}
	}
}
