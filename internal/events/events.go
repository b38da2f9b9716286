// Package events publishes catalog change notifications to a broadcast
// channel. Delivery is best effort: no acknowledgment, no retry.
package events

import (
	"context"
	"errors"
	"time"
)

// Topics.
const (
	TopicEvents   = "events"
	TopicLowStock = "product-lowstock"
)

// Event types published on TopicEvents.
const (
	TypePriceUpdate   = "price_update"
	TypeNotifyPending = "notify_pending"
)

// Event is the payload published on TopicEvents.
type Event struct {
	Type      string   `json:"type"`
	ProductID int      `json:"product_id"`
	NewValue  *float64 `json:"new_value,omitempty"`
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Record is one published message as kept by an archive.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Payload   string    `json:"payload"`
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, payload []byte) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
