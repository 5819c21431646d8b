package sink

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStagingDatabase starts PostgreSQL, applies the staging migrations and
// returns a connected sink.
func setupStagingDatabase(t *testing.T) *PostgresSink {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("telhawk_staging"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)

	s, err := Open(ctx, Options{Backend: BackendPostgres, DSN: dsn, MigrationsPath: migrations, Prefix: DefaultPrefix})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Running the migrations twice is a no-op.
	require.NoError(t, Migrate(dsn, migrations))

	return s.(*PostgresSink)
}

func TestPostgresSink_Write(t *testing.T) {
	s := setupStagingDatabase(t)
	ctx := context.Background()

	records := []convert.Record{
		{"medicine_id": 1, "name": "Aspirin", "price": 4.5},
		{"medicine_id": 2, "name": "Ibuprofen", "price": 6.25},
	}
	loc, err := s.Write(ctx, "postgres-source.public.medicines", records)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, loc.Backend)
	assert.Equal(t, 2, loc.Records)
	assert.Regexp(t, `^debezium/medicines/medicines_\d{8}_\d{6}_\d{6}\.json$`, loc.Key)

	body, err := s.Read(ctx, loc.Key)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(body, []byte("\n")))
	assert.Equal(t, loc.Bytes, int64(len(body)))

	var tableName string
	var count int
	err = s.pool.QueryRow(ctx, `SELECT table_name, record_count FROM staged_batches WHERE object_key = $1`, loc.Key).Scan(&tableName, &count)
	require.NoError(t, err)
	assert.Equal(t, "medicines", tableName)
	assert.Equal(t, 2, count)
}

func TestPostgresSink_CheckHealth(t *testing.T) {
	s := setupStagingDatabase(t)
	assert.NoError(t, s.CheckHealth(context.Background()))
}

func TestPostgresSink_EmptyIsNoop(t *testing.T) {
	s := setupStagingDatabase(t)

	loc, err := s.Write(context.Background(), "postgres-source.public.medicines", nil)
	require.NoError(t, err)
	assert.True(t, loc.IsZero())

	var n int
	require.NoError(t, s.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM staged_batches`).Scan(&n))
	assert.Zero(t, n)
}

func TestPostgresSink_KeysNeverOverwritten(t *testing.T) {
	s := setupStagingDatabase(t)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.namer = NewNamer(DefaultPrefix, func() time.Time { return at })

	_, err := s.Write(ctx, "doctors", []convert.Record{{"doctor_id": 1}})
	require.NoError(t, err)

	// A fresh namer with the same clock reproduces the first key.
	s.namer = NewNamer(DefaultPrefix, func() time.Time { return at })
	_, err = s.Write(ctx, "doctors", []convert.Record{{"doctor_id": 2}})
	assert.ErrorIs(t, err, ErrObjectExists)

	_, err = s.Read(ctx, "debezium/doctors/missing.json")
	assert.Error(t, err)
}
