// Package messaging defines the broker-neutral publish/subscribe surface used for
// alarm change notifications.
package messaging

import (
	"context"
	"time"
)

// Message is a message received from or sent to the broker.
type Message struct {
	Subject string
	Data    []byte

	// Reply is set for request/reply exchanges.
	Reply string

	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish is fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *Message) error
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain closes the connection after in-flight messages complete.
	Drain() error
	IsConnected() bool
}
