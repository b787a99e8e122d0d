package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// socket implements Transport over a gorilla websocket connection.
// Text frames go through a buffered queue drained by a single writer;
// control frames use WriteControl, which is safe to call concurrently.
type socket struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
	logger    *zap.Logger
}

func newSocket(conn *websocket.Conn, buffer int, writeWait time.Duration, logger *zap.Logger) *socket {
	return &socket{
		conn:      conn,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
		logger:    logger,
	}
}

func (s *socket) Send(payload []byte) bool {
	if !s.Open() {
		return false
	}
	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	default:
		s.logger.Warn("send buffer full, closing connection")
		s.Terminate()
		return false
	}
}

func (s *socket) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait))
}

func (s *socket) Terminate() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *socket) Open() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// writePump is the only goroutine writing data frames to the connection.
func (s *socket) writePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				s.Terminate()
				return
			}
		}
	}
}
