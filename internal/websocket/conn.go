package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// sendBufferSize is the number of outbound frames queued per connection.
	sendBufferSize = 256
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
)

var (
	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a connection is not draining its queue.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is a live transport connection as seen by the hub.
type Conn interface {
	// ID is unique for the lifetime of the process.
	ID() string
	// Send queues a text frame without blocking.
	Send(payload []byte) error
	// Close flushes queued frames, then closes the connection with reason.
	Close(reason string) error
	// Reject flushes queued frames, then closes the connection as a policy
	// violation.
	Reject(reason string) error
}

// socketConn adapts a coder/websocket connection to Conn. Frames are written
// by a dedicated write pump so Send never blocks the caller.
type socketConn struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu          sync.RWMutex
	closed      bool
	closeStatus websocket.StatusCode
	closeReason string
	done        chan struct{}
}

func newSocketConn(socket *websocket.Conn, logger *slog.Logger) *socketConn {
	id := uuid.NewString()
	return &socketConn{
		id:     id,
		socket: socket,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With("conn_id", id),
		done:   make(chan struct{}),
	}
}

func (c *socketConn) ID() string { return c.id }

func (c *socketConn) Send(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *socketConn) Close(reason string) error {
	return c.closeWith(websocket.StatusNormalClosure, reason)
}

func (c *socketConn) Reject(reason string) error {
	return c.closeWith(websocket.StatusPolicyViolation, reason)
}

func (c *socketConn) closeWith(status websocket.StatusCode, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeStatus = status
	c.closeReason = reason
	close(c.send)
	return nil
}

// writePump drains the send queue onto the socket. When the queue is closed
// it closes the socket with the recorded status.
func (c *socketConn) writePump() {
	defer close(c.done)

	failed := false
	for payload := range c.send {
		if failed {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.socket.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			// The read pump sees the dead socket and unbinds.
			c.logger.Error("WebSocket write error", "error", err)
			failed = true
			c.socket.CloseNow()
		}
	}

	if failed {
		return
	}
	c.mu.RLock()
	status, reason := c.closeStatus, c.closeReason
	c.mu.RUnlock()
	if err := c.socket.Close(status, reason); err != nil {
		c.logger.Debug("WebSocket close handshake incomplete", "error", err)
	}
}
