// Package kafka provides a Kafka (and Redpanda) implementation of the
// messaging interfaces on top of segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// Config holds Kafka client configuration.
type Config struct {
	// Brokers are the bootstrap addresses (e.g., "redpanda:29092").
	Brokers []string

	// Topics is the set of topics bound at startup.
	Topics []string

	// GroupID is the consumer group identity.
	GroupID string

	// PollTimeout bounds a single Fetch call.
	PollTimeout time.Duration

	// MinBytes and MaxBytes tune fetch requests.
	MinBytes int
	MaxBytes int

	// StartOffset is "earliest" or "latest" for groups without a stored offset.
	StartOffset string

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// ResolveTo, when set, resolves every advertised broker host to this IP.
	// Useful when the broker advertises container hostnames.
	ResolveTo string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Brokers:     []string{"localhost:9092"},
		PollTimeout: time.Second,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		StartOffset: "earliest",
		DialTimeout: 10 * time.Second,
	}
}

type staticResolver struct{ ip string }

func (r staticResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return []string{r.ip}, nil
}

func (c Config) dialer() *kafka.Dialer {
	d := &kafka.Dialer{
		Timeout:   c.DialTimeout,
		DualStack: true,
	}
	if c.ResolveTo != "" {
		d.Resolver = staticResolver{ip: c.ResolveTo}
	}
	return d
}

func (c Config) startOffset() int64 {
	if c.StartOffset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// Consumer implements messaging.Consumer with a kafka-go group reader.
// Offsets are never auto-committed.
type Consumer struct {
	reader      *kafka.Reader
	cfg         Config
	dialer      *kafka.Dialer
	pollTimeout time.Duration
}

var _ messaging.Consumer = (*Consumer)(nil)

// NewConsumer creates a group consumer subscribed to cfg.Topics.
func NewConsumer(cfg Config, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka: no topics configured")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka: group id is required")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := cfg.dialer()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		Dialer:      dialer,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.PollTimeout,
		StartOffset: cfg.startOffset(),
		// Zero interval makes CommitMessages synchronous.
		CommitInterval: 0,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), slog.String("component", "kafka"))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...), slog.String("component", "kafka"))
		}),
	})

	return &Consumer{
		reader:      reader,
		cfg:         cfg,
		dialer:      dialer,
		pollTimeout: cfg.PollTimeout,
	}, nil
}

// Fetch reads the next message without committing it.
func (c *Consumer) Fetch(ctx context.Context) (*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	msg, err := c.reader.FetchMessage(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, messaging.ErrPollTimeout
		}
		return nil, fmt.Errorf("kafka fetch: %w", err)
	}

	return fromKafka(msg), nil
}

// Commit synchronously commits the given positions for the consumer group.
func (c *Consumer) Commit(ctx context.Context, checkpoints ...messaging.Checkpoint) error {
	if len(checkpoints) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(checkpoints))
	for _, cp := range checkpoints {
		msgs = append(msgs, kafka.Message{
			Topic:     cp.Topic,
			Partition: cp.Partition,
			Offset:    cp.Offset,
		})
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka commit: %w", err)
	}
	return nil
}

// CheckHealth dials the first reachable broker and lists the cluster.
func (c *Consumer) CheckHealth(ctx context.Context) error {
	var lastErr error
	for _, addr := range c.cfg.Brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

// Close leaves the group and releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func fromKafka(msg kafka.Message) *messaging.Message {
	out := &messaging.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}
