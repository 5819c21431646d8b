package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// DLQStreamName is the stream holding undecodable change events.
const DLQStreamName = "CDC_DLQ"

// JetStreamClient adds persisted publishing to Client.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &JetStreamClient{Client: client, js: js}, nil
}

// DLQStream captures every cdc.dlq.<reason> subject. Entries are kept for
// maxAge; the duplicate window lets a replayed offset land only once.
func DLQStream(maxAge time.Duration) jetstream.StreamConfig {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return jetstream.StreamConfig{
		Name:       DLQStreamName,
		Subjects:   []string{messaging.SubjectDLQPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     maxAge,
		MaxBytes:   1 << 30,
		MaxMsgs:    1_000_000,
		Duplicates: 10 * time.Minute,
	}
}

// EnsureStream creates cfg or updates it in place.
func (c *JetStreamClient) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// PublishDedup publishes data and waits for the stream ack. A non-empty
// msgID is sent as Nats-Msg-Id so the stream drops repeats inside its
// duplicate window.
func (c *JetStreamClient) PublishDedup(ctx context.Context, subject, msgID string, data []byte) (*jetstream.PubAck, error) {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	return c.js.Publish(ctx, subject, data, opts...)
}
