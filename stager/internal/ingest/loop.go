// Package ingest drives the CDC staging loop: poll a change event, decode
// and convert it, buffer it per table, stage full buffers and commit the
// consumed offsets once the batch is durable.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telhawk-systems/telhawk-cdc/common/logging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/buffer"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/contract"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/dlq"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/envelope"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ledger"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/metrics"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/notify"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/sink"
)

var (
	// ErrBroker wraps a fetch failure that ended the loop.
	ErrBroker = errors.New("broker failure")

	// ErrCommit wraps a commit failure that ended the loop. The batch it
	// belonged to is already staged and will be staged again on redelivery.
	ErrCommit = errors.New("commit failure")
)

// Flush triggers
const (
	TriggerThreshold = "threshold"
	TriggerDrain     = "drain"
)

// Decode failure reasons
const (
	ReasonMalformed    = "malformed"
	ReasonMissingAfter = "missing_after"
)

// Notifier announces staged batches.
type Notifier interface {
	Staged(ctx context.Context, batch notify.StagedBatch) error
}

// Ledger records staged batches.
type Ledger interface {
	RecordBatch(ctx context.Context, entry ledger.Entry, checkpoints []messaging.Checkpoint) error
}

// ContractChecker validates records against the loader contract.
type ContractChecker interface {
	Check(table string, rec convert.Record) []contract.Violation
}

// Config tunes the loop.
type Config struct {
	// Threshold is the per-table record count that triggers a flush.
	Threshold int
	// Decimal controls decimal scale resolution.
	Decimal convert.Options
	// DrainCommitTimeout bounds each commit issued while draining.
	DrainCommitTimeout time.Duration
	// SideEffectTimeout bounds notifications, ledger and DLQ writes.
	SideEffectTimeout time.Duration
}

// Option configures optional collaborators.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithDLQ sends malformed messages to w.
func WithDLQ(w dlq.Writer) Option {
	return func(l *Loop) { l.dlq = w }
}

// WithNotifier publishes a notification after every committed batch.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) { l.notifier = n }
}

// WithLedger records every committed batch.
func WithLedger(lg Ledger) Option {
	return func(l *Loop) { l.ledger = lg }
}

// WithContract checks records before buffering. Violations are reported,
// never enforced.
func WithContract(c ContractChecker) Option {
	return func(l *Loop) { l.contract = c }
}

// WithTracer traces flushes and commits.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) { l.tracer = t }
}

// WithBatchIDs overrides batch id generation.
func WithBatchIDs(next func() string) Option {
	return func(l *Loop) { l.newBatchID = next }
}

// Loop owns the consumer, the table buffers and the sink. Run must be called
// from a single goroutine; Status may be called from any goroutine.
type Loop struct {
	consumer messaging.Consumer
	sink     sink.Sink
	buffers  *buffer.Set
	cfg      Config

	dlq        dlq.Writer
	notifier   Notifier
	ledger     Ledger
	contract   ContractChecker
	tracer     trace.Tracer
	logger     *logging.Logger
	newBatchID func() string

	mu     sync.RWMutex
	status Status
}

// New creates a Loop.
func New(consumer messaging.Consumer, s sink.Sink, cfg Config, opts ...Option) *Loop {
	if cfg.Threshold < 1 {
		cfg.Threshold = buffer.DefaultThreshold
	}
	if cfg.DrainCommitTimeout <= 0 {
		cfg.DrainCommitTimeout = 10 * time.Second
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 5 * time.Second
	}

	l := &Loop{
		consumer:   consumer,
		sink:       s,
		buffers:    buffer.NewSet(cfg.Threshold),
		cfg:        cfg,
		tracer:     noop.NewTracerProvider().Tracer("stager"),
		logger:     logging.Default(),
		newBatchID: uuid.NewString,
		status:     Status{State: StateIdle, Threshold: cfg.Threshold},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run consumes until ctx is cancelled or the broker fails, then drains every
// non-empty buffer once and closes the consumer. A cancelled ctx is a clean
// shutdown and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.markStarted()
	l.logger.Info("ingestion loop started", slog.Int("threshold", l.cfg.Threshold))

	runErr := l.consume(ctx)
	if runErr != nil {
		l.logger.Error("ingestion loop stopping on fatal error", logging.Error(runErr))
		l.recordError(runErr)
	}

	l.drain(ctx)

	if err := l.consumer.Close(); err != nil {
		l.logger.Warn("failed to close consumer", logging.Error(err))
	}
	l.setState(StateStopped)
	l.logger.Info("ingestion loop stopped")
	return runErr
}

func (l *Loop) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		l.setState(StatePolling)
		msg, err := l.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, messaging.ErrPollTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrBroker, err)
		}

		if err := l.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle processes one message. Only a commit failure is returned.
func (l *Loop) handle(ctx context.Context, msg *messaging.Message) error {
	table := msg.Topic
	cp := msg.Checkpoint()
	metrics.MessagesTotal.WithLabelValues(table).Inc()
	l.countConsumed()

	l.setState(StateDecoding)
	env, err := envelope.Decode(msg.Value)
	if err != nil {
		l.dropped(ctx, msg, err)
		l.buffers.Track(table, cp)
		return nil
	}

	kinds := convert.ResolveKinds(env.Fields, l.cfg.Decimal)
	rec, convErrs := convert.Convert(env.After, kinds)
	for _, cerr := range convErrs {
		var ce *convert.ConversionError
		kind := "unknown"
		field := ""
		if errors.As(cerr, &ce) {
			kind, field = ce.Kind.String(), ce.Field
		}
		metrics.ConversionFailures.WithLabelValues(table, kind).Inc()
		l.logger.Warn("field conversion failed, emitting null",
			logging.Table(table),
			logging.Field(field),
			logging.Offset(msg.Offset),
			logging.Error(cerr),
		)
	}

	if l.contract != nil {
		if violations := l.contract.Check(table, rec); len(violations) > 0 {
			metrics.ContractViolations.WithLabelValues(table).Inc()
			reasons := make([]string, 0, len(violations))
			for _, v := range violations {
				reasons = append(reasons, v.String())
			}
			l.logger.Warn("record does not match loader contract",
				logging.Table(table),
				logging.Offset(msg.Offset),
				slog.Any("violations", reasons),
			)
		}
	}

	l.setState(StateBuffering)
	n := l.buffers.Append(table, rec, cp)
	metrics.BufferDepth.WithLabelValues(table).Set(float64(n))
	l.refreshBuffers()

	if !l.buffers.Ready(table) {
		return nil
	}
	return l.flushAndCommit(ctx, table)
}

func (l *Loop) dropped(ctx context.Context, msg *messaging.Message, err error) {
	reason := ReasonMalformed
	if errors.Is(err, envelope.ErrMissingAfter) {
		reason = ReasonMissingAfter
	}
	metrics.DecodeFailures.WithLabelValues(msg.Topic, reason).Inc()
	l.countDropped()

	l.logger.Warn("dropping undecodable change event",
		logging.Table(msg.Topic),
		logging.Partition(msg.Partition),
		logging.Offset(msg.Offset),
		logging.Reason(reason),
		logging.Error(err),
	)

	if l.dlq == nil || reason != ReasonMalformed {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.SideEffectTimeout)
	defer cancel()
	if werr := l.dlq.Write(dctx, msg, err, reason); werr != nil {
		metrics.DLQWrites.WithLabelValues("error").Inc()
		l.logger.Error("failed to write dead letter", logging.Offset(msg.Offset), logging.Error(werr))
		return
	}
	metrics.DLQWrites.WithLabelValues("success").Inc()
}

// staged is a batch written to the sink but not yet committed.
type staged struct {
	id          string
	table       string
	trigger     string
	location    sink.Location
	checkpoints []messaging.Checkpoint
}

// flush stages the table buffer. On failure the buffer is left untouched.
// Flushing never observes cancellation of ctx.
func (l *Loop) flush(ctx context.Context, table, trigger string) (*staged, bool) {
	records := l.buffers.Snapshot(table)
	if len(records) == 0 {
		return nil, false
	}

	b := &staged{
		id:          l.newBatchID(),
		table:       table,
		trigger:     trigger,
		checkpoints: l.buffers.Checkpoints(table),
	}

	ctx = logging.WithBatchID(context.WithoutCancel(ctx), b.id)
	ctx, span := l.tracer.Start(ctx, "stager.flush", trace.WithAttributes(
		attribute.String("cdc.table", table),
		attribute.String("cdc.trigger", trigger),
		attribute.Int("cdc.records", len(records)),
	))
	defer span.End()

	l.setState(StateFlushing)
	start := time.Now()
	loc, err := l.sink.Write(ctx, table, records)
	elapsed := time.Since(start)
	metrics.FlushDuration.WithLabelValues(table).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flush failed")
		metrics.FlushesTotal.WithLabelValues(table, trigger, "error").Inc()
		l.countFlushFailure(err)
		l.logger.ErrorContext(ctx, "flush failed, records kept for retry",
			logging.Table(table),
			logging.Records(len(records)),
			slog.String("trigger", trigger),
			logging.Duration(elapsed),
			logging.Error(err),
		)
		return nil, false
	}

	b.location = loc
	metrics.FlushesTotal.WithLabelValues(table, trigger, "success").Inc()
	metrics.RecordsStaged.WithLabelValues(table).Add(float64(loc.Records))
	metrics.BytesStaged.WithLabelValues(table).Add(float64(loc.Bytes))
	span.SetAttributes(attribute.String("cdc.object", loc.Key))

	l.logger.InfoContext(ctx, "staged batch",
		logging.Table(table),
		logging.Object(loc.URI),
		logging.Records(loc.Records),
		slog.String("trigger", trigger),
		logging.Duration(elapsed),
	)
	return b, true
}

// commit stores the batch checkpoints with the broker and clears the table.
func (l *Loop) commit(ctx context.Context, b *staged) error {
	ctx = logging.WithBatchID(ctx, b.id)
	ctx, span := l.tracer.Start(ctx, "stager.commit", trace.WithAttributes(
		attribute.String("cdc.table", b.table),
		attribute.Int("cdc.partitions", len(b.checkpoints)),
	))
	defer span.End()

	l.setState(StateCommitting)
	err := l.consumer.Commit(ctx, b.checkpoints...)

	// The records are durable either way; keeping them would stage them twice.
	l.buffers.Clear(b.table)
	metrics.BufferDepth.WithLabelValues(b.table).Set(0)
	l.refreshBuffers()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		metrics.CommitsTotal.WithLabelValues(b.table, "error").Inc()
		return err
	}

	metrics.CommitsTotal.WithLabelValues(b.table, "success").Inc()
	for _, cp := range b.checkpoints {
		l.logger.DebugContext(ctx, "committed offset",
			logging.Topic(cp.Topic),
			logging.Partition(cp.Partition),
			logging.Offset(cp.Offset),
		)
	}
	l.countStaged(b)
	l.announce(ctx, b)
	return nil
}

func (l *Loop) flushAndCommit(ctx context.Context, table string) error {
	b, ok := l.flush(ctx, table, TriggerThreshold)
	if !ok {
		return nil
	}
	if err := l.commit(context.WithoutCancel(ctx), b); err != nil {
		l.logger.Error("offset commit failed",
			logging.Table(table),
			logging.Object(b.location.URI),
			logging.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", ErrCommit, table, err)
	}
	return nil
}

// drain flushes every non-empty buffer once, in table order, and commits
// what was staged. Failures are logged and not retried.
func (l *Loop) drain(ctx context.Context) {
	l.setState(StateDraining)
	tables := l.buffers.NonEmpty()
	if len(tables) == 0 {
		return
	}
	l.logger.Info("draining buffers", slog.Int("tables", len(tables)))

	base := context.WithoutCancel(ctx)
	for _, table := range tables {
		b, ok := l.flush(base, table, TriggerDrain)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(base, l.cfg.DrainCommitTimeout)
		err := l.commit(cctx, b)
		cancel()
		if err != nil {
			l.logger.Error("offset commit failed during drain",
				logging.Table(table),
				logging.Object(b.location.URI),
				logging.Error(err),
			)
		}
	}
}

// announce runs the post-commit side channels. Failures are logged only.
func (l *Loop) announce(ctx context.Context, b *staged) {
	if l.notifier == nil && l.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.SideEffectTimeout)
	defer cancel()

	now := time.Now().UTC()
	short := sink.ShortName(b.table)

	if l.ledger != nil {
		entry := ledger.Entry{
			BatchID:  b.id,
			Table:    short,
			Key:      b.location.Key,
			URI:      b.location.URI,
			Records:  b.location.Records,
			Bytes:    b.location.Bytes,
			Trigger:  b.trigger,
			StagedAt: now,
		}
		if err := l.ledger.RecordBatch(ctx, entry, b.checkpoints); err != nil {
			l.logger.WarnContext(ctx, "failed to record staged batch in ledger", logging.Table(b.table), logging.Error(err))
		}
	}

	if l.notifier != nil {
		err := l.notifier.Staged(ctx, notify.StagedBatch{
			BatchID:     b.id,
			Table:       short,
			SourceTable: b.table,
			Backend:     b.location.Backend,
			Key:         b.location.Key,
			URI:         b.location.URI,
			Records:     b.location.Records,
			Bytes:       b.location.Bytes,
			Checkpoints: b.checkpoints,
			StagedAt:    now,
		})
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			l.logger.WarnContext(ctx, "failed to publish staged notification", logging.Table(b.table), logging.Error(err))
			return
		}
		metrics.NotificationsTotal.WithLabelValues("success").Inc()
	}
}
