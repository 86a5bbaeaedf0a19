package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chatline/internal/domain"
)

func TestBridgePublishSubscribe(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	require.NoError(t, bridge.Subscribe(ctx, "test.topic", func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	}))

	require.NoError(t, bridge.Publish(ctx, Message{
		Topic:    "test.topic",
		UserID:   "user123",
		Payload:  []byte(`{"hello":"world"}`),
		Metadata: map[string]string{"request_id": "req-1"},
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "test.topic", msg.Topic)
		assert.Equal(t, "user123", msg.UserID)
		assert.JSONEq(t, `{"hello":"world"}`, string(msg.Payload))
		assert.Equal(t, "req-1", msg.Metadata["request_id"])
		assert.Equal(t, "user123", msg.Metadata["user_id"])
		assert.NotContains(t, msg.Metadata, "topic")
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestBridgeKeepsPublishOrderPerSubscriber(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	require.NoError(t, bridge.Subscribe(ctx, "ordered", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(msg.Payload))
		if len(got) == 20 {
			close(done)
		}
		return nil
	}))

	var want []string
	for i := 0; i < 20; i++ {
		p := string(rune('a' + i))
		want = append(want, p)
		require.NoError(t, bridge.Publish(ctx, Message{Topic: "ordered", Payload: []byte(p)}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestFailingHandlerDoesNotStallSubscription(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()
	ctx := context.Background()

	calls := make(chan string, 4)
	require.NoError(t, bridge.Subscribe(ctx, "flaky", func(ctx context.Context, msg Message) error {
		calls <- string(msg.Payload)
		if string(msg.Payload) == "bad" {
			return errors.New("cannot handle")
		}
		return nil
	}))

	require.NoError(t, bridge.Publish(ctx, Message{Topic: "flaky", Payload: []byte("bad")}))
	require.NoError(t, bridge.Publish(ctx, Message{Topic: "flaky", Payload: []byte("good")}))

	assert.Equal(t, "bad", <-calls)
	assert.Equal(t, "good", <-calls)
}

func TestTypedEventRoundTrip(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()
	ctx := context.Background()

	got := make(chan domain.UserStateChanged, 1)
	require.NoError(t, bridge.Subscribe(ctx, StateChanged.Name(), func(ctx context.Context, msg Message) error {
		ev, err := StateChanged.Decode(msg)
		if err != nil {
			return err
		}
		assert.Equal(t, "5", msg.UserID)
		got <- ev
		return nil
	}))

	require.NoError(t, Publish(ctx, bridge, StateChanged, 5, domain.UserStateChanged{UserID: 5, State: domain.StateIdle}))

	select {
	case ev := <-got:
		assert.Equal(t, domain.UserStateChanged{UserID: 5, State: domain.StateIdle}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("typed event not delivered")
	}
}

func TestNotificationTopics(t *testing.T) {
	names := map[string]bool{}
	for _, topic := range NotificationTopics() {
		assert.NotEmpty(t, topic.Description())
		names[topic.Name()] = true
	}
	assert.Equal(t, map[string]bool{
		"chat.message.new":  true,
		"chat.user.state":   true,
		"chat.user.profile": true,
	}, names)

	_, err := MessageCreated.Decode(Message{Payload: []byte("{")})
	assert.Error(t, err)
}

func TestTracingBridge(t *testing.T) {
	ctx := context.Background()

	tracer, shutdown, err := SetupTracing(ctx, TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))

	bridge := NewWatermillBridge(WithTracer(tracer))
	defer bridge.Close()

	got := make(chan Message, 1)
	require.NoError(t, bridge.Subscribe(ctx, "traced", func(ctx context.Context, msg Message) error {
		got <- msg
		return nil
	}))
	require.NoError(t, bridge.Publish(ctx, Message{Topic: "traced", Payload: []byte("x")}))

	select {
	case msg := <-got:
		assert.Equal(t, "x", string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("traced message not delivered")
	}
}

func TestSetupTracingEnabled(t *testing.T) {
	ctx := context.Background()
	tracer, shutdown, err := SetupTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "test-service",
		ZipkinURL:   "http://localhost:9411/api/v2/spans",
	})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
