// Package sink writes batches of converted records as immutable
// newline-delimited JSON objects.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

var (
	// ErrEmptyTable is returned when Write is called without a table.
	ErrEmptyTable = errors.New("empty table identifier")

	// ErrObjectExists is returned when the generated object name is taken.
	// Staged objects are never overwritten.
	ErrObjectExists = errors.New("staged object already exists")
)

// Backends
const (
	BackendFilesystem = "filesystem"
	BackendPostgres   = "postgres"
)

// Location identifies a staged object.
type Location struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
	URI     string `json:"uri"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// IsZero reports whether nothing was written.
func (l Location) IsZero() bool { return l.Key == "" }

// Sink durably stores one batch per call. Writing an empty batch is a no-op
// that returns a zero Location.
type Sink interface {
	Write(ctx context.Context, table string, records []convert.Record) (Location, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Prefix  string

	// Filesystem backend.
	Root string
	Fs   afero.Fs

	// Postgres backend.
	DSN            string
	MigrationsPath string

	Logger *slog.Logger
}

// Open builds the configured sink.
func Open(ctx context.Context, opts Options) (Sink, error) {
	switch opts.Backend {
	case BackendFilesystem, "":
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFilesystemSink(fs, opts.Root, opts.Prefix)
	case BackendPostgres:
		if opts.MigrationsPath != "" {
			if err := Migrate(opts.DSN, opts.MigrationsPath); err != nil {
				return nil, err
			}
			if opts.Logger != nil {
				opts.Logger.Info("staging migrations applied", slog.String("path", opts.MigrationsPath))
			}
		}
		return NewPostgresSink(ctx, opts.DSN, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown sink backend %q (supported: filesystem, postgres)", opts.Backend)
	}
}

// Encode serializes records as one JSON object per line. Keys are sorted.
func Encode(records []convert.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
