package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfrund/chatline/internal/domain"
)

var errDialRefused = errors.New("connection refused")

// fakeTransport replays queued frames and records written ones.
type fakeTransport struct {
	frames  chan []byte
	written chan []byte
	closed  atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames:  make(chan []byte, 16),
		written: make(chan []byte, 16),
	}
}

func (t *fakeTransport) Write(_ context.Context, payload []byte) error {
	t.written <- append([]byte(nil), payload...)
	return nil
}

func (t *fakeTransport) Reader(ctx context.Context) (io.Reader, error) {
	select {
	case f, ok := <-t.frames:
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		return bytes.NewReader(f), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// fakeDialer hands out transports or errors in order and records dial times.
type fakeDialer struct {
	mu      sync.Mutex
	results []any
	dials   []time.Time
	dialed  chan struct{}
}

func newFakeDialer(results ...any) *fakeDialer {
	return &fakeDialer{results: results, dialed: make(chan struct{}, 64)}
}

func (d *fakeDialer) Dial(context.Context, string) (Transport, error) {
	d.mu.Lock()
	d.dials = append(d.dials, time.Now())
	var next any = errDialRefused
	if len(d.results) > 0 {
		next = d.results[0]
		d.results = d.results[1:]
	}
	d.mu.Unlock()
	d.dialed <- struct{}{}

	if t, ok := next.(Transport); ok {
		return t, nil
	}
	return nil, next.(error)
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

// stateRecorder collects state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	ch     chan State
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan State, 128)}
}

func (r *stateRecorder) observe(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	select {
	case r.ch <- s:
	default:
	}
}

func (r *stateRecorder) seen(s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.states {
		if got == s {
			return true
		}
	}
	return false
}

func fixedIdentity(name string) IdentityFunc {
	return func() (string, bool) { return name, true }
}

// blockingListener stalls the receiver goroutine until released.
type blockingListener struct {
	entered chan struct{}
	release chan struct{}
}

func (l *blockingListener) NewMessage(domain.ChatMessage) {
	close(l.entered)
	<-l.release
}

func (l *blockingListener) UserUpdate(UserUpdate) {}
