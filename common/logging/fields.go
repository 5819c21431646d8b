package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldBatchID   = "batch_id"
	FieldTraceID   = "trace_id"
	FieldTable     = "table"
	FieldTopic     = "topic"
	FieldPartition = "partition"
	FieldOffset    = "offset"
	FieldField     = "field"
	FieldObject    = "object"
	FieldRecords   = "records"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldReason    = "reason"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Table returns a slog attribute for the source table identifier.
func Table(name string) slog.Attr {
	return slog.String(FieldTable, name)
}

// Topic returns a slog attribute for a broker topic.
func Topic(name string) slog.Attr {
	return slog.String(FieldTopic, name)
}

// Partition returns a slog attribute for a broker partition.
func Partition(p int) slog.Attr {
	return slog.Int(FieldPartition, p)
}

// Offset returns a slog attribute for a broker offset.
func Offset(o int64) slog.Attr {
	return slog.Int64(FieldOffset, o)
}

// Field returns a slog attribute for a record field name.
func Field(name string) slog.Attr {
	return slog.String(FieldField, name)
}

// Object returns a slog attribute for a staged object location.
func Object(uri string) slog.Attr {
	return slog.String(FieldObject, uri)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Reason returns a slog attribute for a failure reason code.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}
