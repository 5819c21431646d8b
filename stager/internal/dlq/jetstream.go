package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging/nats"
)

// StreamPublisher is the part of the JetStream client the DLQ needs.
type StreamPublisher interface {
	EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	PublishDedup(ctx context.Context, subject, msgID string, data []byte) (*jetstream.PubAck, error)
}

// JetStreamQueue publishes failed messages to the CDC_DLQ stream. Safe for
// use across multiple stager instances.
type JetStreamQueue struct {
	js      StreamPublisher
	logger  *slog.Logger
	written uint64
}

// NewJetStreamQueue ensures the DLQ stream exists.
func NewJetStreamQueue(ctx context.Context, js StreamPublisher, logger *slog.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := js.EnsureStream(ctx, nats.DLQStream(0)); err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}
	logger.Info("DLQ: JetStream stream ready", slog.String("stream", nats.DLQStreamName))

	return &JetStreamQueue{js: js, logger: logger}, nil
}

// Write publishes a failed message to cdc.dlq.<reason>. Redelivery of the
// same offset is deduplicated by the stream.
func (q *JetStreamQueue) Write(ctx context.Context, msg *messaging.Message, err error, reason string) error {
	if q == nil {
		return nil
	}

	data, marshalErr := json.Marshal(newFailedMessage(msg, err, reason))
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	msgID := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	if _, pubErr := q.js.PublishDedup(ctx, messaging.DLQSubject(reason), msgID, data); pubErr != nil {
		return fmt.Errorf("publish dlq entry: %w", pubErr)
	}

	atomic.AddUint64(&q.written, 1)
	return nil
}

// Written returns the number of entries published by this instance.
func (q *JetStreamQueue) Written() uint64 {
	return atomic.LoadUint64(&q.written)
}
