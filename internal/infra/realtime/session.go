package realtime

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	domainuser "propnest/internal/domain/user"
)

const (
	sendQueueSize = 64
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

// Session is one live websocket connection subscribed to its user's room.
// Outbound frames go through a buffered queue so a publisher is never
// blocked by a slow client; a client that cannot keep up is disconnected.
type Session struct {
	ID     string
	UserID domainuser.ID

	conn   *websocket.Conn
	queue  chan []byte
	done   chan struct{}
	closed atomic.Bool
	logger *slog.Logger
}

func NewSession(id string, userID domainuser.ID, conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		conn:   conn,
		queue:  make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// TrySend enqueues a frame without blocking. Overflow means the client fell
// too far behind; the connection is dropped, the durable read path is how it
// recovers.
func (s *Session) TrySend(payload []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.queue <- payload:
		return true
	default:
		if s.logger != nil {
			s.logger.Warn("realtime backpressure overflow, dropping connection", "user_id", s.UserID, "session_id", s.ID)
		}
		s.CloseWithReason(websocket.CloseInternalServerErr, "backpressure overflow")
		return false
	}
}

func (s *Session) Close() {
	s.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (s *Session) CloseWithReason(code int, reason string) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	if s.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = s.conn.Close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if s.logger != nil {
					s.logger.Debug("realtime write failed", "user_id", s.UserID, "session_id", s.ID, "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
