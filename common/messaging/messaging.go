// Package messaging provides abstractions for message broker communication.
// It defines interfaces that allow services to consume from a partitioned log
// and publish notifications without being coupled to a specific broker.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by Consumer.Fetch when the bounded wait elapsed
// without a message. It is not a broker failure.
var ErrPollTimeout = errors.New("poll timeout")

// Message represents one record read from a partitioned log.
type Message struct {
	// Topic is the log the message was read from. For CDC topics this is also
	// the source-table identifier.
	Topic string

	// Partition is the partition within the topic.
	Partition int

	// Offset is the position of the message within its partition.
	Offset int64

	// Key is the optional message key.
	Key []byte

	// Value is the raw message payload.
	Value []byte

	// Headers contains optional key-value pairs.
	Headers map[string]string

	// Time is when the broker recorded the message.
	Time time.Time
}

// Checkpoint returns the consumption position of this message.
func (m *Message) Checkpoint() Checkpoint {
	return Checkpoint{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
}

// Checkpoint is a consumption position. Offset is the offset of the last
// processed message; committing it means everything up to and including
// Offset will not be redelivered.
type Checkpoint struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
}

// PartitionKey identifies a topic partition.
type PartitionKey struct {
	Topic     string
	Partition int
}

// Key returns the partition this checkpoint belongs to.
func (c Checkpoint) Key() PartitionKey {
	return PartitionKey{Topic: c.Topic, Partition: c.Partition}
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("%s[%d]@%d", c.Topic, c.Partition, c.Offset)
}

// Consumer reads from a set of topics and commits positions explicitly.
// Implementations must not auto-commit.
type Consumer interface {
	// Fetch blocks for at most the configured poll wait. It returns
	// ErrPollTimeout when nothing arrived and any other error on broker failure.
	Fetch(ctx context.Context) (*Message, error)

	// Commit synchronously stores the given positions with the broker.
	Commit(ctx context.Context, checkpoints ...Checkpoint) error

	// Close releases the subscription.
	Close() error
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Producer writes messages to topics. Used for seeding and tooling.
type Producer interface {
	Produce(ctx context.Context, msgs ...Message) error
	Close() error
}
