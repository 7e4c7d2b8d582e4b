package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSSubscriber pushes frames to one websocket connection.
type WSSubscriber struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex // gorilla allows one concurrent writer
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func NewWSSubscriber(conn *websocket.Conn, writeTimeout time.Duration) *WSSubscriber {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSSubscriber{conn: conn, writeTimeout: writeTimeout, done: make(chan struct{})}
}

func (s *WSSubscriber) Send(ctx context.Context, payload []byte) error {
	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a normal close frame and releases the connection. Safe to call twice.
func (s *WSSubscriber) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// ReadLoop discards client messages and returns when the peer disconnects
// or the connection is closed.
func (s *WSSubscriber) ReadLoop() error {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
