// Package ledger records staged batches and committed checkpoints in Redis
// so operators and loaders can see what has been staged.
//
// Redis Key Structure:
//
//	cdc:staged:{table}     - List of staged batch entries, newest first (capped)
//	cdc:checkpoint:{table} - Hash of "topic/partition" -> last committed offset
//	cdc:tables             - Set of tables that have staged at least one batch
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/telhawk-cdc/common/database"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// DefaultKeyPrefix namespaces all ledger keys.
const DefaultKeyPrefix = "cdc"

// Entry describes one staged batch.
type Entry struct {
	BatchID  string    `json:"batch_id"`
	Table    string    `json:"table"`
	Key      string    `json:"key"`
	URI      string    `json:"uri"`
	Records  int       `json:"records"`
	Bytes    int64     `json:"bytes"`
	Trigger  string    `json:"trigger"`
	StagedAt time.Time `json:"staged_at"`
}

// Client writes and reads the ledger.
type Client struct {
	redis      *redis.Client
	prefix     string
	maxEntries int64
	ttl        time.Duration
	timeouts   database.Timeouts
}

// Options tunes retention.
type Options struct {
	KeyPrefix  string
	MaxEntries int64
	TTL        time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = 1000
	}
	return o
}

// NewClient connects to Redis at redisURL.
func NewClient(redisURL string, opts Options) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, opts), nil
}

// NewClientFromRedis creates a client from an existing Redis connection.
func NewClientFromRedis(client *redis.Client, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		redis:      client,
		prefix:     opts.KeyPrefix,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		timeouts:   database.DefaultTimeouts(),
	}
}

func (c *Client) stagedKey(table string) string     { return c.prefix + ":staged:" + table }
func (c *Client) checkpointKey(table string) string { return c.prefix + ":checkpoint:" + table }
func (c *Client) tablesKey() string                 { return c.prefix + ":tables" }

// RecordBatch appends a staged batch and the checkpoints committed with it.
func (c *Client) RecordBatch(ctx context.Context, entry Entry, checkpoints []messaging.Checkpoint) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	ctx, cancel := c.timeouts.WriteContext(ctx)
	defer cancel()

	pipe := c.redis.TxPipeline()

	stagedKey := c.stagedKey(entry.Table)
	pipe.LPush(ctx, stagedKey, data)
	pipe.LTrim(ctx, stagedKey, 0, c.maxEntries-1)

	if len(checkpoints) > 0 {
		fields := make(map[string]interface{}, len(checkpoints))
		for _, cp := range checkpoints {
			fields[partitionField(cp)] = strconv.FormatInt(cp.Offset, 10)
		}
		pipe.HSet(ctx, c.checkpointKey(entry.Table), fields)
	}

	pipe.SAdd(ctx, c.tablesKey(), entry.Table)

	if c.ttl > 0 {
		pipe.Expire(ctx, stagedKey, c.ttl)
		pipe.Expire(ctx, c.checkpointKey(entry.Table), c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record staged batch: %w", err)
	}
	return nil
}

// Recent returns up to limit staged batches for table, newest first.
func (c *Client) Recent(ctx context.Context, table string, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := c.timeouts.QueryContext(ctx)
	defer cancel()

	raw, err := c.redis.LRange(ctx, c.stagedKey(table), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read staged batches: %w", err)
	}

	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Checkpoints returns the last committed offsets recorded for table.
func (c *Client) Checkpoints(ctx context.Context, table string) ([]messaging.Checkpoint, error) {
	ctx, cancel := c.timeouts.QueryContext(ctx)
	defer cancel()

	fields, err := c.redis.HGetAll(ctx, c.checkpointKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints: %w", err)
	}

	out := make([]messaging.Checkpoint, 0, len(fields))
	for field, value := range fields {
		cp, ok := parsePartitionField(field)
		if !ok {
			continue
		}
		off, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		cp.Offset = off
		out = append(out, cp)
	}
	return out, nil
}

// Tables returns every table present in the ledger.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	ctx, cancel := c.timeouts.QueryContext(ctx)
	defer cancel()
	return c.redis.SMembers(ctx, c.tablesKey()).Result()
}

// CheckHealth pings Redis.
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}

func partitionField(cp messaging.Checkpoint) string {
	return cp.Topic + "/" + strconv.Itoa(cp.Partition)
}

func parsePartitionField(field string) (messaging.Checkpoint, bool) {
	i := strings.LastIndexByte(field, '/')
	if i <= 0 {
		return messaging.Checkpoint{}, false
	}
	p, err := strconv.Atoi(field[i+1:])
	if err != nil {
		return messaging.Checkpoint{}, false
	}
	return messaging.Checkpoint{Topic: field[:i], Partition: p}, true
}
