// Package dlq keeps change events the stager could not decode so they can
// be inspected and replayed.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// Writer records a failed message.
type Writer interface {
	Write(ctx context.Context, msg *messaging.Message, err error, reason string) error
}

// FailedMessage captures a dropped change event for replay.
type FailedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       []byte    `json:"key,omitempty"`
	Value     []byte    `json:"value"`
	Error     string    `json:"error"`
	Reason    string    `json:"reason"`
}

func newFailedMessage(msg *messaging.Message, err error, reason string) FailedMessage {
	failed := FailedMessage{
		Timestamp: time.Now().UTC(),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Reason:    reason,
	}
	if err != nil {
		failed.Error = err.Error()
	}
	return failed
}

// Queue writes failed messages as JSON files. Single instance only.
type Queue struct {
	fs       afero.Fs
	basePath string
	logger   *slog.Logger
	mu       sync.Mutex
	written  uint64
}

// NewQueue creates a file DLQ under basePath.
func NewQueue(fs afero.Fs, basePath string, logger *slog.Logger) (*Queue, error) {
	if basePath == "" {
		basePath = "/var/lib/telhawk/dlq"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &Queue{fs: fs, basePath: basePath, logger: logger}, nil
}

// Write records a failed message to disk.
func (q *Queue) Write(ctx context.Context, msg *messaging.Message, err error, reason string) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	data, marshalErr := json.MarshalIndent(newFailedMessage(msg, err, reason), "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	filename := fmt.Sprintf("failed_%s_%d_%d.json", fileToken(msg.Topic), msg.Partition, msg.Offset)
	if err := afero.WriteFile(q.fs, filepath.Join(q.basePath, filename), data, 0644); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}

	q.written++
	q.logger.Info("DLQ: wrote failed message",
		slog.String("file", filename),
		slog.String("reason", reason))
	return nil
}

// List returns up to limit failed messages. A limit of zero returns all.
func (q *Queue) List(limit int) ([]FailedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := afero.ReadDir(q.fs, q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	var out []FailedMessage
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		data, err := afero.ReadFile(q.fs, filepath.Join(q.basePath, file.Name()))
		if err != nil {
			q.logger.Warn("DLQ: failed to read entry", slog.String("file", file.Name()), slog.String("error", err.Error()))
			continue
		}
		var failed FailedMessage
		if err := json.Unmarshal(data, &failed); err != nil {
			q.logger.Warn("DLQ: failed to parse entry", slog.String("file", file.Name()), slog.String("error", err.Error()))
			continue
		}
		out = append(out, failed)
	}
	return out, nil
}

// Stats returns DLQ counters.
func (q *Queue) Stats() map[string]interface{} {
	if q == nil {
		return map[string]interface{}{"enabled": false}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[string]interface{}{
		"enabled":   true,
		"backend":   "file",
		"written":   q.written,
		"base_path": q.basePath,
	}
}

func fileToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", ".", "_", " ", "_").Replace(s)
}
