package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned by Send once the transport has closed.
var ErrSessionClosed = errors.New("display session closed")

// WSSession adapts a gorilla websocket connection to the Session interface.
// Writes are serialised behind a mutex and bounded by a deadline so a slow
// consumer never blocks the router for long.
type WSSession struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWSSession wraps an upgraded websocket connection.
func NewWSSession(conn *websocket.Conn, writeTimeout time.Duration) *WSSession {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSSession{conn: conn, writeTimeout: writeTimeout}
}

// Send writes the event as a JSON text message. Any write failure marks the
// session closed; later sends short-circuit with ErrSessionClosed.
func (s *WSSession) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteJSON(event); err != nil {
		s.closed = true
		return err
	}
	return nil
}

// Close shuts the transport down. Safe to call more than once.
func (s *WSSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// ReadSubscribe blocks until the next inbound message is decoded. The caller
// owns the validity check; a decode error means the connection is gone or the
// peer sent a non-JSON frame.
func (s *WSSession) ReadSubscribe() (SubscribeRequest, error) {
	var req SubscribeRequest
	if err := s.conn.ReadJSON(&req); err != nil {
		return SubscribeRequest{}, err
	}
	return req, nil
}
