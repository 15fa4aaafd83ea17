package http

import (
	"net/http"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/session"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
	pongTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleEvents streams the session's coordinator events as JSON text frames
// until the client disconnects or the session ends.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	// Subscribe before the handshake completes so no event emitted after the
	// client sees the upgrade is missed.
	events, cancel := sess.Events.Subscribe(eventBuffer)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("websocket upgrade failed", "session", sess.ID, "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	// The read loop only services control frames and notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout + pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout + pingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	s.logger.Debug("event stream opened", "session", sess.ID)
	for {
		select {
		case <-closed:
			s.logger.Debug("event stream closed by client", "session", sess.ID)
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event write failed", "session", sess.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
