package client

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nfrund/chatline/internal/domain"
)

// UserUpdate reports a change to a user. When FullUpdate is set the whole
// profile should be reloaded and State is nil; otherwise only the state changed.
type UserUpdate struct {
	UserID     int64
	FullUpdate bool
	State      *domain.UserState
}

// Listener receives the events raised by the receiver. Callbacks run on the
// receiver goroutine and must not block for long.
type Listener interface {
	NewMessage(msg domain.ChatMessage)
	UserUpdate(update UserUpdate)
}

// listenerSet is the receiver's subscriber list. Listeners are notified in
// registration order.
type listenerSet struct {
	mu     sync.RWMutex
	nextID int
	items  []listenerEntry
}

type listenerEntry struct {
	id int
	l  Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{}
}

func (s *listenerSet) add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.items = append(s.items, listenerEntry{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.items = slices.DeleteFunc(s.items, func(e listenerEntry) bool { return e.id == id })
		})
	}
}

func (s *listenerSet) snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listener, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.l)
	}
	return out
}

// ChannelListener delivers events to buffered channels. Events that do not
// fit are dropped and counted.
type ChannelListener struct {
	Messages chan domain.ChatMessage
	Updates  chan UserUpdate

	dropped atomic.Int64
}

// NewChannelListener creates a listener with buffers of size buffer.
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{
		Messages: make(chan domain.ChatMessage, buffer),
		Updates:  make(chan UserUpdate, buffer),
	}
}

func (l *ChannelListener) NewMessage(msg domain.ChatMessage) {
	select {
	case l.Messages <- msg:
	default:
		l.dropped.Add(1)
	}
}

func (l *ChannelListener) UserUpdate(update UserUpdate) {
	select {
	case l.Updates <- update:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because a buffer was full.
func (l *ChannelListener) Dropped() int64 {
	return l.dropped.Load()
}
