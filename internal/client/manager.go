package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/registry"
)

const (
	DefaultLockTimeout = 5 * time.Second

	lockPollInterval = 5 * time.Millisecond
)

// Settings is the part of the configuration the manager needs.
type Settings interface {
	GetClientWSURL() string
	GetClientRetryBackoff() time.Duration
	GetClientShutdownGrace() time.Duration
	GetClientLockTimeout() time.Duration
}

// Manager owns the receiver of one client process together with the
// signed-in user it announces.
type Manager struct {
	receiver    *Receiver
	sessions    *registry.Registry
	lockTimeout time.Duration
	logger      *slog.Logger

	userMu    sync.RWMutex
	user      domain.UserIdentity
	connected atomic.Bool
}

// NewManager builds a manager from settings. sessions may be nil.
func NewManager(cfg Settings, sessions *registry.Registry, opts ...ReceiverOption) *Manager {
	m := &Manager{
		sessions:    sessions,
		lockTimeout: cfg.GetClientLockTimeout(),
		logger:      slog.Default().With("component", "client"),
	}
	if m.lockTimeout <= 0 {
		m.lockTimeout = DefaultLockTimeout
	}

	base := []ReceiverOption{
		WithRetryBackoff(cfg.GetClientRetryBackoff()),
		WithShutdownGrace(cfg.GetClientShutdownGrace()),
	}
	m.receiver = NewReceiver(cfg.GetClientWSURL(), m.displayName, append(base, opts...)...)
	m.logger = m.receiver.logger
	return m
}

// Receiver exposes the underlying receiver.
func (m *Manager) Receiver() *Receiver { return m.receiver }

// Start launches the receiver worker.
func (m *Manager) Start(ctx context.Context) { m.receiver.Start(ctx) }

// Subscribe adds a listener to the receiver.
func (m *Manager) Subscribe(l Listener) func() { return m.receiver.Subscribe(l) }

// State returns the receiver state.
func (m *Manager) State() State { return m.receiver.State() }

// Connect records user as the current user and opens the connect gate.
func (m *Manager) Connect(ctx context.Context, user domain.UserIdentity) error {
	const op = "client.Connect"
	if err := user.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Transport(op, err)
	}

	m.userMu.Lock()
	m.user = user
	m.userMu.Unlock()

	if m.connected.CompareAndSwap(false, true) && m.sessions != nil {
		n := m.sessions.AcquireSession()
		m.logger.Debug("Session acquired", "sessions", n)
	}
	m.receiver.Connect()
	m.logger.Info("Connecting", "user", user.DisplayName, "user_id", user.ID)
	return nil
}

// Disconnect drops the stream and forgets the current user. The receiver
// stays alive and idles until the next Connect.
func (m *Manager) Disconnect() {
	m.receiver.Disconnect()

	m.userMu.Lock()
	m.user = domain.UserIdentity{}
	m.userMu.Unlock()

	if m.connected.CompareAndSwap(true, false) && m.sessions != nil {
		n := m.sessions.ReleaseSession()
		m.logger.Debug("Session released", "sessions", n)
	}
}

// Shutdown disconnects and stops the receiver.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Disconnect()
	return m.receiver.Shutdown(ctx)
}

// CurrentUser returns the signed-in user. It gives up after the lock timeout
// and then reports false.
func (m *Manager) CurrentUser() (domain.UserIdentity, bool) {
	deadline := time.Now().Add(m.lockTimeout)
	for !m.userMu.TryRLock() {
		if time.Now().After(deadline) {
			m.logger.Warn("Timed out reading current user", "timeout", m.lockTimeout)
			return domain.UserIdentity{}, false
		}
		time.Sleep(lockPollInterval)
	}
	defer m.userMu.RUnlock()
	return m.user, m.user.DisplayName != ""
}

func (m *Manager) displayName() (string, bool) {
	user, ok := m.CurrentUser()
	return user.DisplayName, ok
}
