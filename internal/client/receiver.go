package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/protocol"
)

const (
	// chunkSize is the read buffer used to reassemble a frame.
	chunkSize = 1024

	DefaultRetryBackoff  = 30 * time.Second
	DefaultShutdownGrace = 10 * time.Second
)

// ErrShutdownTimeout is returned by Shutdown when the worker does not stop
// within the grace period. The worker keeps unwinding in the background.
var ErrShutdownTimeout = errors.New("client: receiver did not stop within grace period")

// IdentityFunc returns the display name to announce on connect.
type IdentityFunc func() (string, bool)

// Receiver keeps a push channel to the server open, reconnecting after
// transport failures, and turns inbound frames into listener events.
type Receiver struct {
	url      string
	dialer   Dialer
	identity IdentityFunc
	backoff  time.Duration
	grace    time.Duration
	logger   *slog.Logger
	observer func(State)

	gate      *gate
	listeners *listenerSet
	state     atomic.Int32

	mu           sync.Mutex
	started      bool
	abort        context.CancelFunc
	cancelStream context.CancelFunc
	done         chan struct{}
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithDialer replaces the default coder/websocket dialer.
func WithDialer(d Dialer) ReceiverOption {
	return func(r *Receiver) {
		if d != nil {
			r.dialer = d
		}
	}
}

// WithRetryBackoff sets the wait between a transport failure and the next attempt.
func WithRetryBackoff(d time.Duration) ReceiverOption {
	return func(r *Receiver) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithShutdownGrace sets how long Shutdown waits for the worker.
func WithShutdownGrace(d time.Duration) ReceiverOption {
	return func(r *Receiver) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithLogger sets the receiver logger.
func WithLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) ReceiverOption {
	return func(r *Receiver) {
		r.observer = fn
	}
}

// NewReceiver creates a receiver for url. identity supplies the display name
// sent as the first frame of every connection.
func NewReceiver(url string, identity IdentityFunc, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		url:       url,
		dialer:    WebSocketDialer{},
		identity:  identity,
		backoff:   DefaultRetryBackoff,
		grace:     DefaultShutdownGrace,
		logger:    slog.Default().With("component", "client"),
		gate:      newGate(),
		listeners: newListenerSet(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds a listener and returns a function that removes it.
func (r *Receiver) Subscribe(l Listener) func() {
	return r.listeners.add(l)
}

// State returns the current lifecycle state.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

// Start launches the worker goroutine. It runs until ctx is cancelled or
// Shutdown is called. Calling Start more than once has no effect.
func (r *Receiver) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(ctx)
	r.abort = cancel
	go r.run(ctx)
}

// Connect opens the connect gate. The worker dials as soon as it is idle.
func (r *Receiver) Connect() {
	r.gate.Open()
}

// Disconnect shuts the connect gate and drops the current stream or retry
// wait. The worker returns to Idle without a backoff.
func (r *Receiver) Disconnect() {
	r.gate.Shut()
	r.mu.Lock()
	cancel := r.cancelStream
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown signals abort and waits for the worker to exit, bounded by the
// grace period and ctx.
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.started = true
		r.mu.Unlock()
		r.setState(Terminated)
		close(r.done)
		return nil
	}
	abort := r.abort
	r.mu.Unlock()

	if abort != nil {
		abort()
	}

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case <-r.done:
		return nil
	case <-timer.C:
		r.logger.Warn("Receiver did not stop within grace period", "grace", r.grace)
		return ErrShutdownTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the worker has exited.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

func (r *Receiver) run(ctx context.Context) {
	defer close(r.done)
	defer r.setState(Terminated)

	for {
		if !r.awaitGate(ctx) {
			r.setState(Aborting)
			return
		}

		r.setState(Connecting)
		err := r.stream(ctx)
		if ctx.Err() != nil {
			r.setState(Aborting)
			return
		}
		if err == nil {
			continue
		}

		r.logger.Error("Transport error, retrying", "error", err, "backoff", r.backoff)
		r.setState(Retrying)
		if !r.sleep(ctx, r.backoff) {
			r.setState(Aborting)
			return
		}
	}
}

// awaitGate blocks until the gate opens. It returns false on abort.
func (r *Receiver) awaitGate(ctx context.Context) bool {
	wait := r.gate.Wait()
	select {
	case <-wait:
		return true
	default:
	}

	r.setState(Idle)
	select {
	case <-wait:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleep waits for d. Disconnect cuts the wait short. It returns false on
// abort.
func (r *Receiver) sleep(ctx context.Context, d time.Duration) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	r.setCancel(cancel)
	defer func() {
		cancel()
		r.setCancel(nil)
	}()

	// Disconnect may have shut the gate before the wait was registered.
	if !r.gate.IsOpen() {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-waitCtx.Done():
		return ctx.Err() == nil
	}
}

// setCancel records the cancel func Disconnect uses to stop the current
// stream or backoff wait.
func (r *Receiver) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancelStream = cancel
	r.mu.Unlock()
}

// stream runs one connection. A nil return means the stream was stopped on
// purpose (abort or Disconnect); any error is a transport failure.
func (r *Receiver) stream(ctx context.Context) error {
	const op = "client.stream"

	streamCtx, cancel := context.WithCancel(ctx)
	r.setCancel(cancel)
	defer func() {
		cancel()
		r.setCancel(nil)
	}()

	// Disconnect may have shut the gate between the wait and here.
	if !r.gate.IsOpen() {
		return nil
	}

	name, ok := r.identity()
	if !ok || name == "" {
		return domain.Errorf(domain.ErrTransport, op, "no current user to announce")
	}

	t, err := r.dialer.Dial(streamCtx, r.url)
	if err != nil {
		if streamCtx.Err() != nil {
			return nil
		}
		return domain.Transport(op, err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			r.logger.Debug("Closing transport", "error", err)
		}
	}()

	if err := t.Write(streamCtx, []byte(name)); err != nil {
		if streamCtx.Err() != nil {
			return nil
		}
		return domain.Transport(op, err)
	}

	r.setState(Streaming)
	r.logger.Info("Streaming notifications", "url", r.url, "user", name)

	for {
		if streamCtx.Err() != nil {
			return nil
		}
		frame, err := readFrame(streamCtx, t)
		if err != nil {
			if streamCtx.Err() != nil {
				return nil
			}
			return domain.Transport(op, err)
		}
		r.dispatch(frame)
	}
}

// readFrame reassembles the next message from fixed-size chunks.
func readFrame(ctx context.Context, t Transport) ([]byte, error) {
	rd, err := t.Reader(ctx)
	if err != nil {
		return nil, err
	}

	var frame bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		n, err := rd.Read(chunk)
		frame.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			return frame.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *Receiver) dispatch(raw []byte) {
	frame, err := protocol.Classify(raw)
	if err != nil {
		r.logger.Debug("Dropping frame", "error", err, "size", len(raw))
		return
	}

	listeners := r.listeners.snapshot()
	switch frame.Kind {
	case protocol.KindMessage:
		for _, l := range listeners {
			l.NewMessage(*frame.Message)
		}
	case protocol.KindState:
		state := frame.State.State
		update := UserUpdate{UserID: frame.State.UserID, State: &state}
		for _, l := range listeners {
			l.UserUpdate(update)
		}
	case protocol.KindProfile:
		update := UserUpdate{UserID: frame.Profile.UserID, FullUpdate: true}
		for _, l := range listeners {
			l.UserUpdate(update)
		}
	}
}

func (r *Receiver) setState(s State) {
	if State(r.state.Swap(int32(s))) == s {
		return
	}
	r.logger.Debug("Receiver state", "state", s)
	if r.observer != nil {
		r.observer(s)
	}
}
