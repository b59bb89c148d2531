package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/mapper"
)

// cursorState is the Cursor lifecycle position.
type cursorState int

const (
	cursorOpen cursorState = iota
	cursorExhausted
	cursorClosed
)

// Cursor is a lazy, forward-only, single-pass sequence of rows. It owns a
// borrowed connection until it is exhausted or closed; both paths release
// the connection back to the pool exactly once. A cursor cannot be
// restarted; traverse it again by re-issuing the query.
//
// Usage:
//
//	cur, err := client.Query(ctx, q)
//	if err != nil { ... }
//	defer cur.Close()
//	for cur.Next(ctx) {
//	    rec := cur.Record()
//	    ...
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	drv   driver.Cursor
	stmt  driver.Stmt
	shape *mapper.Shape
	cols  []driver.Column

	pool *ConnectionPool
	pc   *pooledConn

	logger  Logger
	traceID string

	mu       sync.Mutex
	state    cursorState
	released bool
	current  mapper.Record
	err      error
}

// newCursor wraps an open driver cursor bound to a borrowed connection.
func newCursor(drv driver.Cursor, stmt driver.Stmt, shape *mapper.Shape, pool *ConnectionPool, pc *pooledConn, logger Logger, traceID string) *Cursor {
	return &Cursor{
		drv:     drv,
		stmt:    stmt,
		shape:   shape,
		cols:    drv.Columns(),
		pool:    pool,
		pc:      pc,
		logger:  logger,
		traceID: traceID,
		state:   cursorOpen,
	}
}

// newEmptyCursor represents a statement that produced no result set. It is
// born exhausted; the borrowed connection has already been released.
func newEmptyCursor() *Cursor {
	return &Cursor{state: cursorExhausted, released: true}
}

// Next fetches the next row, returning false at end of results or on
// error; consult Err after the loop. Natural exhaustion releases the
// borrowed connection immediately, so an abandoned fully-read cursor
// leaks nothing.
func (c *Cursor) Next(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != cursorOpen {
		return false
	}

	row, err := c.drv.FetchNext(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.exhaustLocked()
			return false
		}
		if driver.IsFatal(err) {
			c.pc.broken = true
		}
		c.err = &QueryExecutionError{
			Code:    "E_FETCH_FAILED",
			Message: "failed to fetch next row",
			Cause:   err,
		}
		c.closeLocked()
		return false
	}

	rec, err := c.shape.Project(row)
	if err != nil {
		c.err = err
		c.closeLocked()
		return false
	}
	c.current = rec
	return true
}

// Record returns the row fetched by the last successful Next.
func (c *Cursor) Record() mapper.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Err returns the error that terminated iteration, if any.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Columns returns the server-reported column names in result order.
func (c *Cursor) Columns() []string {
	names := make([]string, len(c.cols))
	for i, col := range c.cols {
		names[i] = col.Name
	}
	return names
}

// Close discards unread rows and releases the borrowed connection. It is
// idempotent and valid in any state.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// exhaustLocked handles the server's end-of-results signal: the cursor can
// yield nothing more, so the connection goes back to the pool now.
func (c *Cursor) exhaustLocked() {
	c.state = cursorExhausted
	c.teardownLocked()
}

func (c *Cursor) closeLocked() {
	if c.state == cursorClosed {
		return
	}
	prev := c.state
	c.state = cursorClosed
	if prev == cursorOpen {
		c.teardownLocked()
	}
}

// teardownLocked closes the server-side cursor and statement and releases
// the connection exactly once.
func (c *Cursor) teardownLocked() {
	if c.drv != nil {
		if err := c.drv.Close(); err != nil && c.logger != nil {
			c.logger.Warn("error closing server cursor",
				String("trace_id", c.traceID),
				Error("error", err))
		}
	}
	if c.stmt != nil {
		if err := c.stmt.Close(); err != nil && c.logger != nil {
			c.logger.Warn("error closing statement",
				String("trace_id", c.traceID),
				Error("error", err))
		}
	}
	if !c.released {
		c.released = true
		c.pool.release(c.pc)
	}
}
