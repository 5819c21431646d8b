// Package nats publishes stager notifications and dead letters over NATS.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

// Client is a core NATS publisher.
type Client struct {
	conn *nats.Conn
}

var (
	_ messaging.Publisher     = (*Client)(nil)
	_ messaging.HealthChecker = (*Client)(nil)
)

type Config struct {
	URL  string
	Name string

	// ReconnectWait is the pause between reconnect attempts. The client
	// reconnects forever; a stager never gives up on its notifier.
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration

	// Token authenticates against servers that require one.
	Token string

	// Logger receives connection state changes. Defaults to slog.Default().
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "telhawk-stager",
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

func (cfg Config) options() []nats.Option {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	url := slog.String("url", cfg.URL)

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", url, slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected", url)
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return opts
}

// NewClient connects to cfg.URL. The first connection must succeed.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats: no server url")
	}
	conn, err := nats.Connect(cfg.URL, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return &Client{conn: conn}, nil
}

// Publish is fire-and-forget; it fails only when ctx is done or the
// connection is closed.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// CheckHealth round-trips a PING, bounded by ctx.
func (c *Client) CheckHealth(ctx context.Context) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.New("not connected to NATS")
	}
	return c.conn.FlushWithContext(ctx)
}

// Close drains pending publishes before closing.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}
