package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// Producer implements messaging.Producer with a kafka-go Writer.
type Producer struct {
	writer *kafka.Writer
}

var _ messaging.Producer = (*Producer)(nil)

// NewProducer creates a producer writing to cfg.Brokers. Messages carry their
// own topic. ResolveTo is not applied to producers.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	transport := &kafka.Transport{
		DialTimeout: cfg.DialTimeout,
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			Transport:              transport,
		},
	}, nil
}

// Produce writes msgs and waits for the brokers to acknowledge them.
func (p *Producer) Produce(ctx context.Context, msgs ...messaging.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{
			Topic: m.Topic,
			Key:   m.Key,
			Value: m.Value,
		}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}

	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
