package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// DefaultTopicPrefix matches the Debezium connector topic.prefix plus schema.
const DefaultTopicPrefix = "postgres-source.public"

// Options controls a seeding run.
type Options struct {
	// Tables to seed. Empty seeds every known table.
	Tables []string
	// Count is the number of rows per table.
	Count int
	// StartID is the first primary key generated.
	StartID int
	// TopicPrefix is joined with the table name to form the topic.
	TopicPrefix string
	// MalformedEvery replaces every Nth envelope with a truncated one. Zero disables.
	MalformedEvery int
	// BatchSize is the number of messages per produce call.
	BatchSize int
}

// Result summarizes a run.
type Result struct {
	Produced  map[string]int `json:"produced"`
	Malformed int            `json:"malformed"`
}

// Total returns the number of messages produced.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Produced {
		n += c
	}
	return n
}

// Runner publishes generated envelopes.
type Runner struct {
	producer messaging.Producer
	gen      *Generator
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(producer messaging.Producer, gen *Generator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{producer: producer, gen: gen, logger: logger}
}

// Topic returns the change topic of table under prefix.
func Topic(prefix, table string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "." + table
}

// Run produces opts.Count envelopes for each table.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Count < 1 {
		return Result{}, errors.New("count must be at least 1")
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}
	if opts.StartID < 1 {
		opts.StartID = 1
	}
	names := opts.Tables
	if len(names) == 0 {
		names = TableNames()
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t, err := Lookup(name)
		if err != nil {
			return Result{}, err
		}
		tables = append(tables, t)
	}

	res := Result{Produced: make(map[string]int, len(tables))}
	for _, t := range tables {
		topic := Topic(opts.TopicPrefix, t.Name)
		batch := make([]messaging.Message, 0, opts.BatchSize)

		for i := 0; i < opts.Count; i++ {
			id := opts.StartID + i
			var value []byte
			if opts.MalformedEvery > 0 && (i+1)%opts.MalformedEvery == 0 {
				value = r.gen.Malformed(t, id)
				res.Malformed++
			} else {
				env, err := r.gen.Envelope(t, id)
				if err != nil {
					return res, err
				}
				value = env
			}
			batch = append(batch, messaging.Message{Topic: topic, Key: Key(t, id), Value: value})

			if len(batch) >= opts.BatchSize || i == opts.Count-1 {
				if err := r.producer.Produce(ctx, batch...); err != nil {
					return res, fmt.Errorf("produce to %s: %w", topic, err)
				}
				res.Produced[t.Name] += len(batch)
				batch = batch[:0]
			}
		}
		r.logger.Info("seeded table", slog.String("topic", topic), slog.Int("messages", res.Produced[t.Name]))
	}
	return res, nil
}
