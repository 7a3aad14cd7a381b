package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"guardian/internal/platform/config"
)

// Client wraps a NATS connection used for fire-and-forget event fan-out.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// New connects to NATS. Returns nil, nil if no URL is configured.
func New(cfg config.NATSConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("guardian"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", conn.ConnectedUrl())
	return &Client{conn: conn, logger: logger}, nil
}

// Publish sends data on subject and flushes so broker-side errors surface
// before ctx expires.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Health(_ context.Context) error {
	if c.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats status %s", c.conn.Status())
	}
	return nil
}

// Close drains in-flight messages before closing.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
	c.logger.Info("nats connection closed")
}
