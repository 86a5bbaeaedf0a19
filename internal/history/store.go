// Package history keeps the recent chat history in a bounded in-memory buffer.
package history

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/chatline/internal/domain"
)

const (
	// DefaultCapacity is the hard upper bound of stored messages.
	DefaultCapacity = 1000
	// DefaultTargetRatio is the low-water mark a trim brings the store down to.
	DefaultTargetRatio = 0.9
	// DefaultPageSize is the number of messages returned by QueryBefore.
	DefaultPageSize = 20
)

// Store is an append-only message buffer with capacity-triggered trimming.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items []domain.ChatMessage

	capacity int
	ratio    float64
	target   int
	pageSize int
	logger   *slog.Logger

	// trimDone is closed when the running trim finishes; nil while idle.
	trimMu   sync.Mutex
	trimDone chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the hard capacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithTargetRatio sets the low-water mark as a fraction of the capacity.
func WithTargetRatio(r float64) Option {
	return func(s *Store) {
		if r > 0 && r < 1 {
			s.ratio = r
		}
	}
}

// WithPageSize sets the default page size of QueryBefore.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger used by the trim worker.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		ratio:    DefaultTargetRatio,
		pageSize: DefaultPageSize,
		logger:   slog.Default().With("component", "history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.target = int(float64(s.capacity) * s.ratio)
	return s
}

// Capacity returns the hard capacity.
func (s *Store) Capacity() int { return s.capacity }

// Target returns the low-water mark.
func (s *Store) Target() int { return s.target }

// Append stores msg at the end of the buffer. Once the buffer reaches its
// capacity a background trim down to the target is scheduled.
func (s *Store) Append(msg domain.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	if len(s.items) >= s.capacity {
		// The scheduled trim has not run yet; keep the hard bound.
		s.items = dropOldest(s.items, len(s.items)-s.capacity+1)
	}
	s.items = append(s.items, msg)
	full := len(s.items) >= s.capacity
	s.mu.Unlock()

	if full {
		s.scheduleTrim()
	}
	return nil
}

func (s *Store) scheduleTrim() {
	s.trimMu.Lock()
	if s.trimDone != nil {
		s.trimMu.Unlock()
		return
	}
	done := make(chan struct{})
	s.trimDone = done
	s.trimMu.Unlock()

	go func() {
		defer close(done)
		for {
			s.trim()

			// Appends that hit the capacity while this trim was running did
			// not schedule their own.
			s.trimMu.Lock()
			if s.Len() < s.capacity {
				s.trimDone = nil
				s.trimMu.Unlock()
				return
			}
			s.trimMu.Unlock()
		}
	}()
}

// trim removes the oldest messages until the target is reached. It is a
// no-op when the store is already at or below the target.
func (s *Store) trim() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.items) - s.target
	if excess <= 0 {
		return 0
	}
	s.items = dropOldest(s.items, excess)
	s.logger.Debug("History trimmed", "removed", excess, "remaining", len(s.items))
	return excess
}

// dropOldest returns items without its first n elements, copied into a fresh
// backing array so the evicted messages can be collected.
func dropOldest(items []domain.ChatMessage, n int) []domain.ChatMessage {
	if n >= len(items) {
		return items[:0]
	}
	kept := make([]domain.ChatMessage, len(items)-n, cap(items))
	copy(kept, items[n:])
	return kept
}

// QueryBefore returns up to pageSize messages with a timestamp at or before
// cutoff, most recent first. A pageSize of zero or less selects the default.
func (s *Store) QueryBefore(cutoff time.Time, pageSize int) []domain.ChatMessage {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}

	s.mu.RLock()
	matches := make([]domain.ChatMessage, 0, min(pageSize, len(s.items)))
	// Walk newest arrival first so ties keep the latest arrival in front.
	for i := len(s.items) - 1; i >= 0; i-- {
		if !s.items[i].Timestamp.After(cutoff) {
			matches = append(matches, s.items[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if len(matches) > pageSize {
		matches = matches[:pageSize]
	}
	return matches
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Wait blocks until the trim in flight, if any, has finished.
func (s *Store) Wait() {
	s.trimMu.Lock()
	done := s.trimDone
	s.trimMu.Unlock()
	if done != nil {
		<-done
	}
}

// All returns a copy of the buffer in arrival order.
func (s *Store) All() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, len(s.items))
	copy(out, s.items)
	return out
}
