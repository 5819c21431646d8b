package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/telhawk-systems/telhawk-cdc/common/logging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging/kafka"
	"github.com/telhawk-systems/telhawk-cdc/common/tracing"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/config"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/contract"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/dlq"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ingest"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ledger"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/notify"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/server"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/sink"

	natsclient "github.com/telhawk-systems/telhawk-cdc/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("stager"))
	logging.SetDefault(logger)

	slog.Info("Starting CDC stager",
		slog.Int("port", cfg.Server.Port),
		slog.Any("topics", cfg.Broker.Topics),
		slog.String("group_id", cfg.Broker.GroupID),
		slog.Int("threshold", cfg.Buffer.Threshold),
		slog.String("sink", cfg.Sink.Backend),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Stager exited with error", logging.Error(err))
		os.Exit(1)
	}
	slog.Info("Stager stopped")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tp, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to flush traces", logging.Error(err))
		}
	}()

	// Staging sink
	stagingSink, err := sink.Open(ctx, sink.Options{
		Backend:        cfg.Sink.Backend,
		Prefix:         cfg.Sink.Prefix,
		Root:           cfg.Sink.Filesystem.Root,
		Fs:             afero.NewOsFs(),
		DSN:            cfg.Sink.Postgres.DSN,
		MigrationsPath: cfg.Sink.Postgres.MigrationsPath,
		Logger:         logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer stagingSink.Close()
	slog.Info("Staging sink ready", slog.String("backend", cfg.Sink.Backend), slog.String("prefix", cfg.Sink.Prefix))

	// Broker consumer
	consumer, err := kafka.NewConsumer(kafka.Config{
		Brokers:     cfg.Broker.Brokers,
		Topics:      cfg.Broker.Topics,
		GroupID:     cfg.Broker.GroupID,
		PollTimeout: cfg.Broker.PollTimeout,
		MinBytes:    cfg.Broker.MinBytes,
		MaxBytes:    cfg.Broker.MaxBytes,
		StartOffset: cfg.Broker.StartOffset,
		DialTimeout: cfg.Broker.DialTimeout,
		ResolveTo:   cfg.Broker.ResolveTo,
	}, logger.Logger)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	loopOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithTracer(tp.Tracer()),
	}
	serverOpts := []server.Option{
		server.WithCheck("broker", consumer),
	}
	if hc, ok := stagingSink.(messaging.HealthChecker); ok {
		serverOpts = append(serverOpts, server.WithCheck("sink", hc))
	}

	// Dead letter queue
	if cfg.DLQ.Enabled {
		switch cfg.DLQ.Backend {
		case "jetstream":
			natsCfg := natsclient.DefaultConfig()
			natsCfg.URL = cfg.DLQ.NATSURL
			natsCfg.Logger = logger.Logger
			jsClient, err := natsclient.NewJetStreamClient(natsCfg)
			if err != nil {
				return fmt.Errorf("connect to NATS for DLQ: %w", err)
			}
			defer jsClient.Close()
			jsDLQ, err := dlq.NewJetStreamQueue(ctx, jsClient, logger.Logger)
			if err != nil {
				return fmt.Errorf("initialize JetStream DLQ: %w", err)
			}
			loopOpts = append(loopOpts, ingest.WithDLQ(jsDLQ))
			serverOpts = append(serverOpts, server.WithCheck("dlq", jsClient))
			slog.Info("Dead Letter Queue enabled", slog.String("backend", "jetstream"), slog.String("nats", cfg.DLQ.NATSURL))
		default:
			fileDLQ, err := dlq.NewQueue(afero.NewOsFs(), cfg.DLQ.BasePath, logger.Logger)
			if err != nil {
				return fmt.Errorf("initialize file DLQ: %w", err)
			}
			loopOpts = append(loopOpts, ingest.WithDLQ(fileDLQ))
			serverOpts = append(serverOpts, server.WithDeadLetters(fileDLQ))
			slog.Info("Dead Letter Queue enabled", slog.String("backend", "file"), slog.String("path", cfg.DLQ.BasePath))
		}
	} else {
		slog.Info("Dead Letter Queue disabled")
	}

	// Staged batch notifications
	if cfg.Notify.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.Notify.NATSURL
		natsCfg.Logger = logger.Logger
		natsCfg.Name = "telhawk-stager-notify"
		pub, err := natsclient.NewClient(natsCfg)
		if err != nil {
			return fmt.Errorf("connect to NATS for notifications: %w", err)
		}
		notifier := notify.New(pub, cfg.Notify.SubjectPrefix)
		defer notifier.Close()
		loopOpts = append(loopOpts, ingest.WithNotifier(notifier))
		serverOpts = append(serverOpts, server.WithCheck("notify", pub))
		slog.Info("Staged batch notifications enabled", slog.String("subject_prefix", cfg.Notify.SubjectPrefix))
	}

	// Batch ledger
	if cfg.Ledger.Enabled {
		lg, err := ledger.NewClient(cfg.Ledger.RedisURL, ledger.Options{
			KeyPrefix:  cfg.Ledger.KeyPrefix,
			MaxEntries: cfg.Ledger.MaxEntries,
			TTL:        cfg.Ledger.TTL,
		})
		if err != nil {
			slog.Warn("Failed to initialize batch ledger, continuing without it", logging.Error(err))
		} else {
			defer lg.Close()
			loopOpts = append(loopOpts, ingest.WithLedger(lg))
			serverOpts = append(serverOpts, server.WithHistory(lg))
			slog.Info("Batch ledger enabled", slog.String("key_prefix", cfg.Ledger.KeyPrefix))
		}
	}

	// Loader contract
	if cfg.Contract.Enabled {
		c := contract.Default()
		if cfg.Contract.Path != "" {
			if c, err = contract.Load(cfg.Contract.Path); err != nil {
				return fmt.Errorf("load contract: %w", err)
			}
		}
		loopOpts = append(loopOpts, ingest.WithContract(c))
		slog.Info("Loader contract checks enabled", slog.Int("tables", len(c.Tables)))
	}

	loop := ingest.New(consumer, stagingSink, ingest.Config{
		Threshold: cfg.Buffer.Threshold,
		Decimal: convert.Options{
			DefaultScale:    cfg.Decimal.DefaultScale,
			ScaleFromSchema: cfg.Decimal.ScaleFromSchema,
		},
		DrainCommitTimeout: cfg.Buffer.DrainCommitTimeout,
	}, loopOpts...)

	// Ops server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(server.NewHandler(loop, serverOpts...), logger.Logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		slog.Info("Ops server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Ops server error", logging.Error(err))
			stop()
		}
	}()

	// Run blocks until a signal arrives or the broker fails, then drains.
	runErr := loop.Run(ctx)

	slog.Info("Shutting down ops server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Ops server forced to shutdown", logging.Error(err))
	}

	return runErr
}
