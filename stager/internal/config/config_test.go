package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Load config without a config file (use defaults)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Server.Port != 8095 {
		t.Errorf("Server.Port = %d, want 8095", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}

	if len(cfg.Broker.Topics) != 1 || cfg.Broker.Topics[0] != "postgres-source.public.doctors" {
		t.Errorf("Broker.Topics = %v, want [postgres-source.public.doctors]", cfg.Broker.Topics)
	}

	if cfg.Broker.GroupID != "redpanda-to-gcs-group" {
		t.Errorf("Broker.GroupID = %q, want %q", cfg.Broker.GroupID, "redpanda-to-gcs-group")
	}

	if cfg.Broker.PollTimeout != time.Second {
		t.Errorf("Broker.PollTimeout = %v, want 1s", cfg.Broker.PollTimeout)
	}

	if cfg.Buffer.Threshold != 10 {
		t.Errorf("Buffer.Threshold = %d, want 10", cfg.Buffer.Threshold)
	}

	if cfg.Decimal.DefaultScale != 2 {
		t.Errorf("Decimal.DefaultScale = %d, want 2", cfg.Decimal.DefaultScale)
	}

	if !cfg.Decimal.ScaleFromSchema {
		t.Error("Decimal.ScaleFromSchema should be true by default")
	}

	if cfg.Sink.Backend != "filesystem" {
		t.Errorf("Sink.Backend = %q, want %q", cfg.Sink.Backend, "filesystem")
	}

	if cfg.Sink.Prefix != "debezium" {
		t.Errorf("Sink.Prefix = %q, want %q", cfg.Sink.Prefix, "debezium")
	}

	if cfg.Ledger.TTL != 168*time.Hour {
		t.Errorf("Ledger.TTL = %v, want 168h", cfg.Ledger.TTL)
	}

	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should be false by default")
	}

	if cfg.Tracing.ServiceName != "telhawk-stager" {
		t.Errorf("Tracing.ServiceName = %q, want %q", cfg.Tracing.ServiceName, "telhawk-stager")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stager.yaml")
	content := `
broker:
  brokers: ["project_redpanda:29092"]
  topics:
    - postgres-source.public.doctors
    - postgres-source.public.patients
buffer:
  threshold: 2
sink:
  backend: postgres
  postgres:
    dsn: postgres://stager@db:5432/cdc
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Buffer.Threshold != 2 {
		t.Errorf("Buffer.Threshold = %d, want 2", cfg.Buffer.Threshold)
	}
	if len(cfg.Broker.Topics) != 2 {
		t.Errorf("Broker.Topics = %v, want 2 topics", cfg.Broker.Topics)
	}
	if cfg.Broker.Brokers[0] != "project_redpanda:29092" {
		t.Errorf("Broker.Brokers = %v", cfg.Broker.Brokers)
	}
	if cfg.Sink.Backend != "postgres" {
		t.Errorf("Sink.Backend = %q, want postgres", cfg.Sink.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Decimal.DefaultScale != 2 {
		t.Errorf("Decimal.DefaultScale = %d, want 2", cfg.Decimal.DefaultScale)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAGER_BUFFER_THRESHOLD", "25")
	t.Setenv("STAGER_SINK_PREFIX", "staging")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Buffer.Threshold != 25 {
		t.Errorf("Buffer.Threshold = %d, want 25", cfg.Buffer.Threshold)
	}
	if cfg.Sink.Prefix != "staging" {
		t.Errorf("Sink.Prefix = %q, want staging", cfg.Sink.Prefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero threshold", func(c *Config) { c.Buffer.Threshold = 0 }, "buffer.threshold"},
		{"no brokers", func(c *Config) { c.Broker.Brokers = nil }, "broker.brokers"},
		{"no topics", func(c *Config) { c.Broker.Topics = nil }, "broker.topics"},
		{"no group", func(c *Config) { c.Broker.GroupID = "" }, "broker.group_id"},
		{"bad start offset", func(c *Config) { c.Broker.StartOffset = "middle" }, "broker.start_offset"},
		{"negative scale", func(c *Config) { c.Decimal.DefaultScale = -1 }, "decimal.default_scale"},
		{"unknown sink", func(c *Config) { c.Sink.Backend = "gcs" }, "sink.backend"},
		{"postgres without dsn", func(c *Config) {
			c.Sink.Backend = "postgres"
			c.Sink.Postgres.DSN = ""
		}, "sink.postgres.dsn"},
		{"unknown dlq", func(c *Config) { c.DLQ.Backend = "kafka" }, "dlq.backend"},
		{"notify without url", func(c *Config) {
			c.Notify.Enabled = true
			c.Notify.NATSURL = ""
		}, "notify.nats_url"},
		{"ledger without url", func(c *Config) {
			c.Ledger.Enabled = true
			c.Ledger.RedisURL = ""
		}, "ledger.redis_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DisabledDLQIgnoresBackend(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.DLQ.Enabled = false
	cfg.DLQ.Backend = "unknown"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
