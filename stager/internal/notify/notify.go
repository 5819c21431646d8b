// Package notify announces staged batches so downstream loaders can pick
// them up without listing the staging store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// StagedBatch is the body of a cdc.staged.<table> message.
type StagedBatch struct {
	BatchID     string                 `json:"batch_id"`
	Table       string                 `json:"table"`
	SourceTable string                 `json:"source_table"`
	Backend     string                 `json:"backend"`
	Key         string                 `json:"key"`
	URI         string                 `json:"uri"`
	Records     int                    `json:"records"`
	Bytes       int64                  `json:"bytes"`
	Checkpoints []messaging.Checkpoint `json:"checkpoints"`
	StagedAt    time.Time              `json:"staged_at"`
}

// Notifier publishes staged batch events.
type Notifier struct {
	pub    messaging.Publisher
	prefix string
}

// New creates a Notifier. An empty prefix uses messaging.SubjectStagedPrefix.
func New(pub messaging.Publisher, prefix string) *Notifier {
	return &Notifier{pub: pub, prefix: prefix}
}

// Staged publishes batch on the subject for its table.
func (n *Notifier) Staged(ctx context.Context, batch StagedBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal staged batch: %w", err)
	}
	subject := messaging.StagedSubject(n.prefix, batch.Table)
	if err := n.pub.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close releases the publisher.
func (n *Notifier) Close() error {
	return n.pub.Close()
}
