package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nfrund/chatline/internal/domain"
)

var errSendFailed = errors.New("send failed")

type fakeConn struct {
	id string

	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	rejected bool
	reason   string
	failSend bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errSendFailed
	}
	if c.closed {
		return ErrConnClosed
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeConn) Reject(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.rejected = true
	c.reason = reason
	return nil
}

func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, p := range c.sent {
		out[i] = string(p)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) isRejected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

// failingDirectory wraps a directory and fails SetState.
type failingDirectory struct {
	domain.UserDirectory
}

func (failingDirectory) SetState(context.Context, int64, domain.UserState) error {
	return domain.Unexpected("directory.SetState", errors.New("database unavailable"))
}

// gatedDirectory blocks SetState to offline until release is closed.
type gatedDirectory struct {
	domain.UserDirectory
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *gatedDirectory) SetState(ctx context.Context, id int64, state domain.UserState) error {
	if state == domain.StateOffline {
		d.once.Do(func() { close(d.entered) })
		<-d.release
	}
	return d.UserDirectory.SetState(ctx, id, state)
}
