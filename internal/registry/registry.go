// Package registry holds process-wide runtime state behind type-safe keys,
// including the count of running client sessions.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Key is a type-safe key for registering and retrieving values.
// The string should be unique, e.g. "chat.hub".
type Key[T any] string

// Registry is safe for concurrent use. The zero value is not usable; call New.
type Registry struct {
	values   sync.Map
	sessions atomic.Int64
	closed   atomic.Bool
	closers  []func() error
	mu       sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Set registers value under key, replacing any previous value.
func Set[T any](r *Registry, key Key[T], value T) {
	r.values.Store(string(key), value)
}

// Get retrieves the value registered under key.
func Get[T any](r *Registry, key Key[T]) (T, bool) {
	val, ok := r.values.Load(string(key))
	if !ok {
		var zero T
		return zero, false
	}
	result, ok := val.(T)
	return result, ok
}

// MustGet retrieves a value or panics. Use it for wiring essential
// dependencies at startup.
func MustGet[T any](r *Registry, key Key[T]) T {
	val, ok := Get(r, key)
	if !ok {
		panic(fmt.Sprintf("registry: nothing registered for key %q", string(key)))
	}
	return val
}

// AcquireSession records a started client session and returns the number of
// running sessions.
func (r *Registry) AcquireSession() int64 {
	return r.sessions.Add(1)
}

// ReleaseSession records an ended session. Releasing more sessions than were
// acquired leaves the count at zero.
func (r *Registry) ReleaseSession() int64 {
	for {
		cur := r.sessions.Load()
		if cur == 0 {
			return 0
		}
		if r.sessions.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// Sessions returns the number of running sessions.
func (r *Registry) Sessions() int64 {
	return r.sessions.Load()
}

// OnClose registers fn to run when the registry is closed. Closers run in
// reverse registration order.
func (r *Registry) OnClose(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, fn)
}

// Close runs the registered closers once and resets the session count. The
// first closer error is returned; the rest still run.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.sessions.Store(0)
	return firstErr
}
