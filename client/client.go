// Package client implements the MSSQL client execution and pooling layer:
// parameterized statement dispatch over a shared connection pool, with
// streaming result cursors and stored-procedure support.
package client

import (
	"context"
	"sync/atomic"
	"time"
)

// Client binds a pool reference plus session-level configuration and
// exposes the four operation entry points: Execute, Query, BatchExecute
// and Call. A Client is safe for concurrent use; each operation borrows
// its own connection.
type Client struct {
	pool      *ConnectionPool
	opts      Options
	logger    Logger
	debugMode atomic.Bool
	closed    atomic.Bool
}

// NewClient creates a client and attaches it to its connection pool. The
// pool is selected by opts.Pool: nil joins the process-wide pool for these
// connection parameters; a PoolOptions value joins (or creates) the pool
// tied to that exact value.
func NewClient(opts Options) (*Client, error) {
	if opts.Connector == nil {
		return nil, &ConnectionError{
			Code:    "E_NO_CONNECTOR",
			Message: "options must supply a driver connector",
		}
	}
	if opts.Host == "" {
		return nil, &ConnectionError{
			Code:    "E_NO_HOST",
			Message: "options must supply a server host",
		}
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}

	cfg := opts.driverConfig()
	var pool *ConnectionPool
	if opts.Pool == nil {
		pool = registry.globalPool(opts.Connector, cfg, logger)
	} else {
		pool = registry.optionsPool(opts.Pool, opts.Connector, cfg, logger)
	}

	c := &Client{
		pool:   pool,
		opts:   opts,
		logger: logger,
	}
	c.debugMode.Store(opts.DebugMode)

	logger.Debug("client created",
		String("host", opts.Host),
		Int("port", opts.Port),
		String("database", opts.Database),
		Int("maxOpen", pool.MaxOpen()))

	return c, nil
}

// Close detaches the client from its pool. When this was the last client
// attached, the pool and all its connections are torn down. Operations on
// a closed client fail with ResourceClosedError, as does a second Close.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return &ResourceClosedError{Resource: "client"}
	}
	c.logger.Debug("client closing")
	return c.pool.detach()
}

// Ping verifies the server is reachable by borrowing a pooled connection
// and probing it.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return &ResourceClosedError{Resource: "client"}
	}
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return errAcquireFailed(err)
	}
	defer c.pool.release(pc)

	if err := pc.conn.Ping(ctx); err != nil {
		pc.broken = true
		return &ConnectionError{
			Code:    "E_PING_FAILED",
			Message: "connection health check failed",
			Cause:   err,
		}
	}
	return nil
}

// PoolStats returns a snapshot of the underlying pool's statistics.
func (c *Client) PoolStats() *PoolStats {
	return c.pool.Stats()
}

// IsDebugMode reports whether per-operation trace logging is enabled.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// SetDebugMode toggles per-operation trace logging at runtime.
func (c *Client) SetDebugMode(enabled bool) {
	c.debugMode.Store(enabled)
}
