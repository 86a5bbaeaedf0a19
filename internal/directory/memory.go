package directory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nfrund/chatline/internal/domain"
)

// Memory is an in-process Directory. Ids come from an atomic counter, so
// concurrent registrations never collide.
type Memory struct {
	mu     sync.RWMutex
	byID   map[int64]*domain.UserIdentity
	byName map[string]int64

	nextID atomic.Int64
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[int64]*domain.UserIdentity),
		byName: make(map[string]int64),
	}
}

func (m *Memory) FindByName(ctx context.Context, name string) (domain.UserIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[domain.FoldName(name)]
	if !ok {
		return domain.UserIdentity{}, domain.NotFound("directory.FindByName", "user "+name)
	}
	return *m.byID[id], nil
}

func (m *Memory) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byName[domain.FoldName(name)]
	return ok, nil
}

func (m *Memory) SetState(ctx context.Context, id int64, state domain.UserState) error {
	if !state.Valid() {
		return domain.Errorf(domain.ErrValidation, "directory.SetState", "invalid state %d", int(state))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "directory.SetState", "user %d", id)
	}
	u.State = state
	return nil
}

func (m *Memory) AddOrUpdate(ctx context.Context, name string) (domain.UserIdentity, bool, error) {
	name = strings.TrimSpace(name)
	candidate := domain.UserIdentity{DisplayName: name, State: domain.StateNew}
	if err := candidate.Validate(); err != nil {
		return domain.UserIdentity{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.FoldName(name)
	if id, ok := m.byName[key]; ok {
		u := m.byID[id]
		u.DisplayName = name
		return *u, false, nil
	}

	candidate.ID = m.nextID.Add(1)
	m.byID[candidate.ID] = &candidate
	m.byName[key] = candidate.ID
	return candidate, true, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (domain.UserIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.UserIdentity{}, domain.Errorf(domain.ErrNotFound, "directory.Get", "user %d", id)
	}
	return *u, nil
}

func (m *Memory) List(ctx context.Context) ([]domain.UserIdentity, error) {
	m.mu.RLock()
	users := make([]domain.UserIdentity, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, *u)
	}
	m.mu.RUnlock()

	slices.SortFunc(users, func(a, b domain.UserIdentity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "directory.Delete", "user %d", id)
	}
	delete(m.byName, domain.FoldName(u.DisplayName))
	delete(m.byID, id)
	return nil
}
