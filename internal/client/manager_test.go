package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chatline/internal/directory"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/registry"
	"github.com/nfrund/chatline/internal/websocket"
)

type testSettings struct {
	url         string
	backoff     time.Duration
	grace       time.Duration
	lockTimeout time.Duration
}

func (s testSettings) GetClientWSURL() string                { return s.url }
func (s testSettings) GetClientRetryBackoff() time.Duration  { return s.backoff }
func (s testSettings) GetClientShutdownGrace() time.Duration { return s.grace }
func (s testSettings) GetClientLockTimeout() time.Duration   { return s.lockTimeout }

func TestManagerConnectTracksSessions(t *testing.T) {
	transport := newFakeTransport()
	sessions := registry.New()
	m := NewManager(testSettings{url: "ws://example.test/ws"}, sessions, WithDialer(newFakeDialer(transport)))
	m.Start(context.Background())

	require.NoError(t, m.Connect(context.Background(), domain.UserIdentity{ID: 4, DisplayName: "alice"}))
	require.NoError(t, m.Connect(context.Background(), domain.UserIdentity{ID: 4, DisplayName: "alice"}))
	assert.Equal(t, int64(1), sessions.Sessions())

	assert.Equal(t, "alice", string(<-transport.written))
	user, ok := m.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, int64(4), user.ID)

	m.Disconnect()
	assert.Equal(t, int64(0), sessions.Sessions())
	_, ok = m.CurrentUser()
	assert.False(t, ok)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, Terminated, m.State())
}

func TestManagerRejectsInvalidUser(t *testing.T) {
	m := NewManager(testSettings{}, nil)

	err := m.Connect(context.Background(), domain.UserIdentity{ID: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCurrentUserLockTimeout(t *testing.T) {
	m := NewManager(testSettings{lockTimeout: 20 * time.Millisecond}, nil)

	m.userMu.Lock()
	start := time.Now()
	_, ok := m.CurrentUser()
	elapsed := time.Since(start)
	m.userMu.Unlock()

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestManagerAgainstHub(t *testing.T) {
	ctx := context.Background()
	users := directory.NewMemory()
	alice, _, err := users.AddOrUpdate(ctx, "alice")
	require.NoError(t, err)

	hub := websocket.NewHub(users)
	e := echo.New()
	e.GET("/ws", hub.Handler())
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	m := NewManager(testSettings{url: url, backoff: 50 * time.Millisecond}, registry.New())
	listener := NewChannelListener(8)
	m.Subscribe(listener)
	m.Start(ctx)
	defer func() { _ = m.Shutdown(ctx) }()

	require.NoError(t, m.Connect(ctx, alice))

	select {
	case update := <-listener.Updates:
		assert.Equal(t, alice.ID, update.UserID)
		require.NotNil(t, update.State)
		assert.Equal(t, domain.StateOnline, *update.State)
	case <-time.After(3 * time.Second):
		t.Fatal("online notification not received")
	}

	require.Eventually(t, func() bool { return hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Broadcast(ctx, domain.ChatMessage{OwnerID: alice.ID, Content: "hello", Timestamp: time.Now().UTC()}))

	select {
	case msg := <-listener.Messages:
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, alice.ID, msg.OwnerID)
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast message not received")
	}

	m.Disconnect()
	require.Eventually(t, func() bool { return hub.Registry().Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return m.State() == Idle }, 2*time.Second, 10*time.Millisecond)
}
