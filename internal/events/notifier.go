package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/catalog"
	"github.com/triage-ai/toolhost/internal/pricing"
)

const defaultPublishTimeout = 2 * time.Second

// FailureRecorder counts failed publishes.
type FailureRecorder interface {
	RecordPublishFailure(topic string)
}

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	Publisher Publisher
	// LowStockThreshold triggers a TopicLowStock message when the written
	// product's stock is below it.
	LowStockThreshold int
	// PublishTimeout bounds each publish. Defaults to 2s.
	PublishTimeout time.Duration
	Recorder       FailureRecorder // optional
	Logger         *zap.Logger
}

// Notifier turns catalog writes into broadcast messages.
type Notifier struct {
	pub               Publisher
	lowStockThreshold int
	timeout           time.Duration
	recorder          FailureRecorder
	logger            *zap.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(cfg NotifierConfig) *Notifier {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		pub:               cfg.Publisher,
		lowStockThreshold: cfg.LowStockThreshold,
		timeout:           timeout,
		recorder:          cfg.Recorder,
		logger:            logger,
	}
}

// PriceChanged publishes a price_update event for p and, when p is low on
// stock, its id on TopicLowStock. Failures are logged and swallowed.
func (n *Notifier) PriceChanged(ctx context.Context, p catalog.Product) {
	price := p.Price
	if err := n.publishEvent(ctx, Event{Type: TypePriceUpdate, ProductID: p.ID, NewValue: &price}); err != nil {
		n.logger.Warn("price update event not published", zap.Int("product_id", p.ID), zap.Error(err))
	}

	if pricing.IsLowStock(p.Stock, n.lowStockThreshold) {
		if err := n.publish(ctx, TopicLowStock, []byte(strconv.Itoa(p.ID))); err != nil {
			n.logger.Warn("low stock signal not published", zap.Int("product_id", p.ID), zap.Error(err))
		}
	}
}

// NotifyPending publishes a notify_pending event. Unlike PriceChanged the
// error is returned, since the publish is the caller's whole effect.
func (n *Notifier) NotifyPending(ctx context.Context, productID int) error {
	return n.publishEvent(ctx, Event{Type: TypeNotifyPending, ProductID: productID})
}

func (n *Notifier) publishEvent(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Type, err)
	}
	return n.publish(ctx, TopicEvents, payload)
}

func (n *Notifier) publish(ctx context.Context, topic string, payload []byte) error {
	// a write that already happened is announced even if the caller has gone
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	err := n.pub.Publish(ctx, topic, payload)
	if err != nil && n.recorder != nil {
		n.recorder.RecordPublishFailure(topic)
	}
	return err
}
