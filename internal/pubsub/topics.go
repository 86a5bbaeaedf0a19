package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nfrund/chatline/internal/domain"
)

// Event binds a topic name to the payload type published on it.
type Event[T any] struct {
	name        string
	description string
}

// NewEvent defines a typed topic.
func NewEvent[T any](name, description string) Event[T] {
	return Event[T]{name: name, description: description}
}

// Name returns the topic name.
func (e Event[T]) Name() string { return e.name }

// Description returns a human readable summary of the topic.
func (e Event[T]) Description() string { return e.description }

// Decode unmarshals a message published on this topic.
func (e Event[T]) Decode(msg Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s payload: %w", e.name, err)
	}
	return payload, nil
}

// Publish sends a typed event. The compiler ensures payload matches T.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], userID int64, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event.name, err)
	}
	return p.Publish(ctx, Message{
		Topic:   event.name,
		UserID:  strconv.FormatInt(userID, 10),
		Payload: data,
		Metadata: map[string]string{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}

// Notification topics. Everything published here is pushed to every
// connected client.
var (
	MessageCreated = NewEvent[domain.ChatMessage]("chat.message.new", "A chat message was sent")
	StateChanged   = NewEvent[domain.UserStateChanged]("chat.user.state", "A user's presence state changed")
	ProfileChanged = NewEvent[domain.UserProfileChanged]("chat.user.profile", "A user's profile must be reloaded")
)

// Topic describes a notification topic.
type Topic interface {
	Name() string
	Description() string
}

// NotificationTopics lists the topics relayed to clients.
func NotificationTopics() []Topic {
	return []Topic{MessageCreated, StateChanged, ProfileChanged}
}
