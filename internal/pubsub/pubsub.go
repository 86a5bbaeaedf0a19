// Package pubsub is the in-process message bus the chat service publishes
// notification events on. The websocket hub subscribes to it and fans the
// events out to connected clients.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g. "chat.message.new").
	Topic string
	// UserID identifies the user the event is about, when there is one.
	UserID string
	// Payload contains the JSON encoded event.
	Payload []byte
	// Metadata carries arbitrary key-value context (timestamps, request ids).
	Metadata map[string]string
}

// Handler processes a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages of topic to handler in the
	// background until ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
