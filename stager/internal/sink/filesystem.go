package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

// FilesystemSink stages objects as files below a root directory.
type FilesystemSink struct {
	fs    afero.Fs
	root  string
	namer *Namer
}

var _ Sink = (*FilesystemSink)(nil)

// NewFilesystemSink creates the root directory if needed.
func NewFilesystemSink(fs afero.Fs, root, prefix string) (*FilesystemSink, error) {
	if root == "" {
		root = "/var/lib/telhawk/staging"
	}
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &FilesystemSink{
		fs:    fs,
		root:  root,
		namer: NewNamer(prefix, nil),
	}, nil
}

// Write stores records under a new key. The file is written under a
// temporary name and renamed into place once synced.
func (s *FilesystemSink) Write(ctx context.Context, table string, records []convert.Record) (Location, error) {
	if len(records) == 0 {
		return Location{}, nil
	}
	if table == "" {
		return Location{}, ErrEmptyTable
	}
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	body, err := Encode(records)
	if err != nil {
		return Location{}, err
	}

	key := s.namer.Next(table)
	full := filepath.Join(s.root, filepath.FromSlash(key))

	if exists, err := afero.Exists(s.fs, full); err != nil {
		return Location{}, fmt.Errorf("stat %s: %w", full, err)
	} else if exists {
		return Location{}, fmt.Errorf("%w: %s", ErrObjectExists, key)
	}

	if err := s.fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return Location{}, fmt.Errorf("create table directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := s.writeSynced(tmp, body); err != nil {
		_ = s.fs.Remove(tmp)
		return Location{}, err
	}
	if err := s.fs.Rename(tmp, full); err != nil {
		_ = s.fs.Remove(tmp)
		return Location{}, fmt.Errorf("publish %s: %w", key, err)
	}

	return Location{
		Backend: BackendFilesystem,
		Key:     key,
		URI:     "file://" + filepath.ToSlash(full),
		Records: len(records),
		Bytes:   int64(len(body)),
	}, nil
}

func (s *FilesystemSink) writeSynced(name string, body []byte) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	return f.Close()
}

// Read returns the body of a staged object.
func (s *FilesystemSink) Read(key string) ([]byte, error) {
	return afero.ReadFile(s.fs, filepath.Join(s.root, filepath.FromSlash(key)))
}

// CheckHealth verifies the staging root is still a directory.
func (s *FilesystemSink) CheckHealth(ctx context.Context) error {
	info, err := s.fs.Stat(s.root)
	if err != nil {
		return fmt.Errorf("staging root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("staging root %s is not a directory", s.root)
	}
	return nil
}

// Close is a no-op.
func (s *FilesystemSink) Close() error { return nil }
