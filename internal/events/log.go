package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher is a fallback Publisher for local development.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher that outputs messages to the given logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Info("event published",
		zap.String("topic", topic),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
