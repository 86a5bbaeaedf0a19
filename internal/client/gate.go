package client

import "sync"

// gate is a manual-reset signal. While open, Wait returns a closed channel;
// while shut, it returns a channel that is closed by the next Open.
type gate struct {
	mu   sync.Mutex
	ch   chan struct{}
	open bool
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

// Open releases all current and future waiters until Shut is called.
func (g *gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		g.open = true
		close(g.ch)
	}
}

// Shut makes future waiters block again.
func (g *gate) Shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.open = false
		g.ch = make(chan struct{})
	}
}

// Wait returns a channel that is closed once the gate is open.
func (g *gate) Wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// IsOpen reports the current gate position.
func (g *gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}
