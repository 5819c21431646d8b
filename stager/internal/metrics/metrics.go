package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Consumption metrics
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_messages_total",
			Help: "Total number of change events fetched from the broker",
		},
		[]string{"table"},
	)

	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_decode_failures_total",
			Help: "Total number of change events dropped because they could not be decoded",
		},
		[]string{"table", "reason"},
	)

	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_conversion_failures_total",
			Help: "Total number of column values emitted as null after a failed conversion",
		},
		[]string{"table", "kind"},
	)

	ContractViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_contract_violations_total",
			Help: "Total number of records that do not match the loader contract",
		},
		[]string{"table"},
	)

	// Buffer metrics
	BufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telhawk_stager_buffer_depth",
			Help: "Records buffered per table awaiting a flush",
		},
		[]string{"table"},
	)

	// Flush metrics
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_flushes_total",
			Help: "Total number of flush attempts",
		},
		[]string{"table", "trigger", "status"},
	)

	FlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telhawk_stager_flush_duration_seconds",
			Help:    "Duration of staging writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	RecordsStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_records_staged_total",
			Help: "Total number of records durably staged",
		},
		[]string{"table"},
	)

	BytesStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_bytes_staged_total",
			Help: "Total bytes of staged objects",
		},
		[]string{"table"},
	)

	// Commit metrics
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_commits_total",
			Help: "Total number of offset commits",
		},
		[]string{"table", "status"},
	)

	// Side channel metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_dlq_writes_total",
			Help: "Total number of dead-letter writes",
		},
		[]string{"status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_stager_notifications_total",
			Help: "Total number of staged-batch notifications",
		},
		[]string{"status"},
	)
)
