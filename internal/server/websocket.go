package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/marcelveldt/music-assistant/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	// sendBuffer bounds per-client backlog; a stalled client loses events
	// instead of stalling the bus.
	wsSendBuffer = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// local network server, same-origin enforcement is left to the proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and forwards every bus event to
// the client as JSON until it disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan events.Event, wsSendBuffer)
	subID := s.bus.Subscribe(events.Filter{}, func(event events.Event) {
		select {
		case send <- event:
		default:
			s.logger.Debug("websocket client lagging, dropping event", "type", event.Type)
		}
	})

	done := make(chan struct{})
	go s.wsReadLoop(conn, done)
	go s.wsWriteLoop(conn, send, done, subID)
}

// wsReadLoop discards client messages; its job is detecting disconnect.
func (s *Server) wsReadLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) wsWriteLoop(conn *websocket.Conn, send chan events.Event, done chan struct{}, subID string) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.bus.Unsubscribe(subID)
		conn.Close()
	}()
	for {
		select {
		case <-done:
			return
		case event := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
