package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/telhawk-systems/telhawk-cdc/common/database"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

// PostgresSink stages each batch as one row of staged_batches.
type PostgresSink struct {
	pool     *pgxpool.Pool
	namer    *Namer
	timeouts database.Timeouts
}

var _ Sink = (*PostgresSink)(nil)

// Migrate applies the staging schema from migrationsPath.
func Migrate(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NewPostgresSink connects to the staging database.
func NewPostgresSink(ctx context.Context, dsn, prefix string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// One writer goroutine; keep the pool small.
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{pool: pool, namer: NewNamer(prefix, nil), timeouts: database.DefaultTimeouts()}, nil
}

// Write inserts the batch. Existing keys are never overwritten.
func (s *PostgresSink) Write(ctx context.Context, table string, records []convert.Record) (Location, error) {
	if len(records) == 0 {
		return Location{}, nil
	}
	if table == "" {
		return Location{}, ErrEmptyTable
	}

	body, err := Encode(records)
	if err != nil {
		return Location{}, err
	}

	key := s.namer.Next(table)
	ctx, cancel := s.timeouts.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO staged_batches (object_key, table_name, source_table, record_count, byte_size, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.pool.Exec(ctx, query, key, ShortName(table), table, len(records), len(body), body)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Location{}, fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return Location{}, fmt.Errorf("failed to insert staged batch: %w", err)
	}

	return Location{
		Backend: BackendPostgres,
		Key:     key,
		URI:     "postgres://staged_batches/" + key,
		Records: len(records),
		Bytes:   int64(len(body)),
	}, nil
}

// Read returns the body of a staged batch.
func (s *PostgresSink) Read(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.timeouts.QueryContext(ctx)
	defer cancel()

	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM staged_batches WHERE object_key = $1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("staged batch %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read staged batch: %w", err)
	}
	return body, nil
}

// CheckHealth pings the staging database.
func (s *PostgresSink) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
