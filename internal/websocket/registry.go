package websocket

import (
	"sync"

	"github.com/nfrund/chatline/internal/domain"
)

// Entry associates a live connection with the user it identified as.
type Entry struct {
	ConnID      string
	DisplayName string
	UserID      int64

	conn Conn
}

// Registry is the liveness index of bound connections. Identity itself is
// owned by the user directory; the registry only knows which connection
// currently speaks for which name. All methods are safe for concurrent use
// and every mutation is visible to the next call on any goroutine.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]Entry
	byName map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]Entry),
		byName: make(map[string]string),
	}
}

// Claim registers e unless another connection holds the same display name.
// Claiming again from the connection that already holds an entry returns
// that entry unchanged.
func (r *Registry) Claim(e Entry) (Entry, error) {
	key := domain.FoldName(e.DisplayName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byConn[e.ConnID]; ok {
		return existing, nil
	}
	if holder, ok := r.byName[key]; ok && holder != e.ConnID {
		return Entry{}, domain.Conflict("registry.Claim", "name "+e.DisplayName+" is held by another connection")
	}

	r.byConn[e.ConnID] = e
	r.byName[key] = e.ConnID
	return e, nil
}

// Remove deletes the entry of connID. The bool reports whether one existed.
func (r *Registry) Remove(connID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return Entry{}, false
	}
	r.remove(e)
	return e, true
}

// RemoveUser deletes every entry bound to userID and returns them.
func (r *Registry) RemoveUser(userID int64) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Entry
	for _, e := range r.byConn {
		if e.UserID == userID {
			removed = append(removed, e)
		}
	}
	for _, e := range removed {
		r.remove(e)
	}
	return removed
}

// HasUser reports whether any connection is bound to userID.
func (r *Registry) HasUser(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byConn {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// remove must be called with mu held.
func (r *Registry) remove(e Entry) {
	delete(r.byConn, e.ConnID)
	key := domain.FoldName(e.DisplayName)
	if r.byName[key] == e.ConnID {
		delete(r.byName, key)
	}
}

// Lookup returns the entry of connID.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[connID]
	return e, ok
}

// Snapshot returns a copy of all entries.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byConn))
	for _, e := range r.byConn {
		out = append(out, e)
	}
	return out
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
