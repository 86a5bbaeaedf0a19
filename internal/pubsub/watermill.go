package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Metadata keys used to carry Message fields through watermill.
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"
)

// WatermillBridge implements Publisher and Subscriber on top of watermill's
// in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger *slog.Logger
}

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*WatermillBridge)

// WithTracer wraps publishing and message handling in spans.
func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(wb *WatermillBridge) { wb.tracer = tracer }
}

// WithLogger sets the logger used for handler failures.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(wb *WatermillBridge) { wb.logger = logger }
}

// NewWatermillBridge creates an in-memory bus. Publish returns once every
// subscriber has handled the message.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
			// Without this GoChannel hands each message to its own goroutine
			// and subscribers may see them out of order.
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)

	wb := &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: slog.Default().With("component", "pubsub"),
	}
	for _, opt := range opts {
		opt(wb)
	}
	if wb.tracer != nil {
		wb.pub = NewTracingPublisher(wb.pub, wb.tracer)
	}
	return wb
}

// toWatermill converts a Message to a watermill message.
func toWatermill(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.Metadata.Set(metaKeyUserID, msg.UserID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	return wmMsg
}

// fromWatermill converts a watermill message back to a Message. The reserved
// topic key is removed from the metadata; user_id is kept when set.
func fromWatermill(wmMsg *message.Message) Message {
	userID := wmMsg.Metadata.Get(metaKeyUserID)

	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyUserID && k != metaKeyTopic {
			metadata[k] = v
		}
	}
	if userID != "" {
		metadata[metaKeyUserID] = userID
	}

	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		UserID:   userID,
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher. The message topic doubles as the watermill topic.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, toWatermill(ctx, msg))
}

// Subscribe implements Subscriber. It returns as soon as the subscription is
// active; messages are handled one at a time, in publish order, on a
// background goroutine.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	if wb.tracer != nil {
		handler = traceHandler(wb.tracer, handler)
	}

	go func() {
		for wmMsg := range messages {
			msg := fromWatermill(wmMsg)
			if err := handler(ctx, msg); err != nil {
				// GoChannel redelivers nacked messages forever, so failures
				// are logged and acknowledged.
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()
	return nil
}

// Close shuts the bus down; running subscriptions end.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
