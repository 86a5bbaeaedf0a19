// Package websocket pushes chat notifications to connected clients. It binds
// each incoming connection to a user on its first frame, keeps the registry
// of bound connections and broadcasts events to all of them.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/protocol"
	"github.com/nfrund/chatline/internal/pubsub"
)

// Hub owns the connection registry and the broadcaster.
type Hub struct {
	directory domain.UserDirectory
	registry  *Registry
	logger    *slog.Logger

	inboundRate    float64
	inboundBurst   int
	allowedOrigins []string

	// live tracks every accepted connection, bound or not, for shutdown.
	live      sync.Map
	// userLocks serializes bind and unbind of the same user.
	userLocks sync.Map
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithInboundLimit sets the per-connection inbound frame rate.
func WithInboundLimit(perSecond float64, burst int) Option {
	return func(h *Hub) {
		if perSecond > 0 && burst > 0 {
			h.inboundRate = perSecond
			h.inboundBurst = burst
		}
	}
}

// WithAllowedOrigins sets the origin patterns accepted on upgrade. With none
// set, only same-host requests are accepted.
func WithAllowedOrigins(patterns ...string) Option {
	return func(h *Hub) { h.allowedOrigins = patterns }
}

// NewHub creates a hub resolving users through directory.
func NewHub(directory domain.UserDirectory, opts ...Option) *Hub {
	h := &Hub{
		directory:    directory,
		registry:     NewRegistry(),
		logger:       slog.Default().With("component", "websocket"),
		inboundRate:  5,
		inboundBurst: 10,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the hub's connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Bind associates conn with the user named claimedName. A connection that is
// already bound keeps its binding. Unknown users, names held by another live
// connection and directory failures are rejected: a rejection envelope is
// sent, conn is closed and nothing is registered.
func (h *Hub) Bind(ctx context.Context, conn Conn, claimedName string) (int64, error) {
	if e, ok := h.registry.Lookup(conn.ID()); ok {
		return e.UserID, nil
	}

	name := strings.TrimSpace(claimedName)
	if name == "" {
		err := domain.Validation("websocket.Bind", "empty display name")
		h.reject(conn, err)
		return 0, err
	}

	user, err := h.directory.FindByName(ctx, name)
	if err != nil {
		h.reject(conn, err)
		return 0, err
	}

	unlock := h.lockUser(user.ID)
	defer unlock()

	entry, err := h.registry.Claim(Entry{ConnID: conn.ID(), DisplayName: user.DisplayName, UserID: user.ID, conn: conn})
	if err != nil {
		h.reject(conn, err)
		return 0, err
	}

	if err := h.directory.SetState(ctx, user.ID, domain.StateOnline); err != nil {
		h.registry.Remove(conn.ID())
		h.reject(conn, err)
		return 0, fmt.Errorf("failed to mark user %d online: %w", user.ID, err)
	}

	h.logger.InfoContext(ctx, "Connection bound", "conn_id", conn.ID(), "user_id", entry.UserID, "name", entry.DisplayName)
	if err := h.Broadcast(ctx, domain.UserStateChanged{UserID: entry.UserID, State: domain.StateOnline}); err != nil {
		h.logger.ErrorContext(ctx, "Failed to broadcast online state", "user_id", entry.UserID, "error", err)
	}
	return entry.UserID, nil
}

func (h *Hub) reject(conn Conn, cause error) {
	level := slog.LevelWarn
	if domain.KindOf(cause) == domain.ErrUnexpected {
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "Rejecting connection", "conn_id", conn.ID(), "error", cause)

	if err := conn.Send(protocol.Rejection(cause)); err != nil {
		h.logger.Warn("Failed to queue rejection", "conn_id", conn.ID(), "error", err)
	}
	if err := conn.Reject("rejected"); err != nil {
		h.logger.Warn("Failed to close rejected connection", "conn_id", conn.ID(), "error", err)
	}
}

// Unbind removes the entry of conn, marks its user offline and tells
// everyone. The user stays online while another connection is bound to it.
// Unbinding a connection that was never bound does nothing.
func (h *Hub) Unbind(ctx context.Context, conn Conn) {
	bound, ok := h.registry.Lookup(conn.ID())
	if !ok {
		return
	}

	unlock := h.lockUser(bound.UserID)
	defer unlock()

	entry, ok := h.registry.Remove(conn.ID())
	if !ok {
		return
	}
	if h.registry.HasUser(entry.UserID) {
		h.logger.DebugContext(ctx, "Connection unbound, user still connected", "conn_id", entry.ConnID, "user_id", entry.UserID)
		return
	}

	if err := h.directory.SetState(ctx, entry.UserID, domain.StateOffline); err != nil {
		h.logger.ErrorContext(ctx, "Failed to mark user offline", "user_id", entry.UserID, "error", err)
	}
	h.logger.InfoContext(ctx, "Connection unbound", "conn_id", entry.ConnID, "user_id", entry.UserID)

	if err := h.Broadcast(ctx, domain.UserStateChanged{UserID: entry.UserID, State: domain.StateOffline}); err != nil {
		h.logger.ErrorContext(ctx, "Failed to broadcast offline state", "user_id", entry.UserID, "error", err)
	}
}

// lockUser holds the transition lock of userID until the returned func is called.
func (h *Hub) lockUser(userID int64) func() {
	v, _ := h.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Broadcast encodes event once and queues it on every bound connection. A
// failed send is logged and skipped; the connection stays registered until
// its own read loop ends. A state change to offline or deleted also drops the
// user's remaining entries.
func (h *Hub) Broadcast(ctx context.Context, event any) error {
	payload, err := protocol.Encode(event)
	if err != nil {
		return err
	}

	entries := h.registry.Snapshot()
	for _, e := range entries {
		if err := e.conn.Send(payload); err != nil {
			h.logger.WarnContext(ctx, "Failed to deliver broadcast", "conn_id", e.ConnID, "user_id", e.UserID, "error", err)
		}
	}

	if sc, ok := stateChange(event); ok && sc.State.Gone() {
		for _, e := range h.registry.RemoveUser(sc.UserID) {
			h.logger.DebugContext(ctx, "Removed entry of departed user", "conn_id", e.ConnID, "user_id", e.UserID)
		}
	}
	return nil
}

func stateChange(event any) (domain.UserStateChanged, bool) {
	switch e := event.(type) {
	case domain.UserStateChanged:
		return e, true
	case *domain.UserStateChanged:
		return *e, true
	}
	return domain.UserStateChanged{}, false
}

// Subscribe relays every notification topic of sub to Broadcast until ctx ends.
func (h *Hub) Subscribe(ctx context.Context, sub pubsub.Subscriber) error {
	subscriptions := []struct {
		topic  string
		handle pubsub.Handler
	}{
		{pubsub.MessageCreated.Name(), relay(h, pubsub.MessageCreated)},
		{pubsub.StateChanged.Name(), relay(h, pubsub.StateChanged)},
		{pubsub.ProfileChanged.Name(), relay(h, pubsub.ProfileChanged)},
	}
	for _, s := range subscriptions {
		if err := sub.Subscribe(ctx, s.topic, s.handle); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
		}
	}
	return nil
}

func relay[T any](h *Hub, event pubsub.Event[T]) pubsub.Handler {
	return func(ctx context.Context, msg pubsub.Message) error {
		payload, err := event.Decode(msg)
		if err != nil {
			return err
		}
		return h.Broadcast(ctx, payload)
	}
}

// CloseAll closes every live connection, bound or not.
func (h *Hub) CloseAll(reason string) {
	h.live.Range(func(_, v any) bool {
		conn := v.(Conn)
		if err := conn.Close(reason); err != nil {
			h.logger.Warn("Failed to close connection", "conn_id", conn.ID(), "error", err)
		}
		return true
	})
}
