// Package mock provides an in-memory driver implementation with scripted
// behavior, used by the client tests and usable as a stand-in driver in
// application tests.
package mock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/sqltypes"
)

// Connector implements driver.Connector against scripted, in-memory state.
// Statements are matched by their rendered text; unscripted statements
// succeed with an empty summary so tests only script what they assert on.
type Connector struct {
	mu           sync.RWMutex
	scripts      map[string]*Script
	connectErr   error
	connectDelay time.Duration

	connects  atomic.Int32
	open      atomic.Int32
	peakOpen  atomic.Int32
	pingCalls atomic.Int32
}

// Script describes the outcome of one statement.
type Script struct {
	mu         sync.Mutex
	cols       []driver.Column
	rows       []driver.Row
	summary    driver.ExecSummary
	outParams  map[string]interface{}
	err        error
	fetchDelay time.Duration
}

// NewConnector creates a connector with no scripts.
func NewConnector() *Connector {
	return &Connector{scripts: make(map[string]*Script)}
}

// WithConnectError configures Connect to fail with err.
func (c *Connector) WithConnectError(err error) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
	return c
}

// WithConnectDelay adds a delay to Connect.
func (c *Connector) WithConnectDelay(d time.Duration) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectDelay = d
	return c
}

// OnStatement returns the script for the given statement text, creating it
// if needed. Returns the script for fluent configuration.
func (c *Connector) OnStatement(text string) *Script {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scripts[text]
	if !ok {
		s = &Script{}
		c.scripts[text] = s
	}
	return s
}

// WillReturnRows scripts a result set.
func (s *Script) WillReturnRows(cols []driver.Column, rows ...driver.Row) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols = cols
	s.rows = rows
	return s
}

// WillReturnSummary scripts an execution summary.
func (s *Script) WillReturnSummary(rowsAffected, lastInsertID int64) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = driver.ExecSummary{RowsAffected: rowsAffected, LastInsertID: lastInsertID}
	return s
}

// WillReturnOutParams scripts procedure output parameters.
func (s *Script) WillReturnOutParams(out map[string]interface{}) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outParams = out
	return s
}

// WillReturnError scripts a failure. Wrap the error in *driver.Error with
// Fatal set to simulate a broken session.
func (s *Script) WillReturnError(err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithFetchDelay adds a delay to each row fetch.
func (s *Script) WithFetchDelay(d time.Duration) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchDelay = d
	return s
}

func (s *Script) snapshot() (cols []driver.Column, rows []driver.Row, sum driver.ExecSummary, out map[string]interface{}, err error, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows, s.summary, s.outParams, s.err, s.fetchDelay
}

// Connect implements driver.Connector.
func (c *Connector) Connect(ctx context.Context, cfg driver.Config) (driver.Conn, error) {
	c.mu.RLock()
	connectErr := c.connectErr
	delay := c.connectDelay
	c.mu.RUnlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if connectErr != nil {
		return nil, connectErr
	}

	c.connects.Add(1)
	open := c.open.Add(1)
	for {
		peak := c.peakOpen.Load()
		if open <= peak || c.peakOpen.CompareAndSwap(peak, open) {
			break
		}
	}

	return &conn{connector: c, alive: true, lastActivity: time.Now()}, nil
}

// ConnectCount returns how many physical connections were ever opened.
func (c *Connector) ConnectCount() int { return int(c.connects.Load()) }

// OpenConns returns the number of currently open connections.
func (c *Connector) OpenConns() int { return int(c.open.Load()) }

// PeakOpenConns returns the highest number of simultaneously open
// connections observed.
func (c *Connector) PeakOpenConns() int { return int(c.peakOpen.Load()) }

// PingCount returns how many pings were served across all connections.
func (c *Connector) PingCount() int { return int(c.pingCalls.Load()) }

type conn struct {
	connector    *Connector
	mu           sync.Mutex
	alive        bool
	closed       bool
	lastActivity time.Time
}

func (cn *conn) Prepare(ctx context.Context, text string) (driver.Stmt, error) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return nil, &driver.Error{Code: "CONN_CLOSED", Message: "connection is closed", Fatal: true}
	}
	cn.lastActivity = time.Now()
	return &stmt{conn: cn, text: text, params: make(map[int]sqltypes.Value)}, nil
}

func (cn *conn) ExecuteBatch(ctx context.Context, statements []driver.BatchStatement) ([]driver.ExecSummary, error) {
	cn.mu.Lock()
	if cn.closed {
		cn.mu.Unlock()
		return nil, &driver.Error{Code: "CONN_CLOSED", Message: "connection is closed", Fatal: true}
	}
	cn.lastActivity = time.Now()
	cn.mu.Unlock()

	results := make([]driver.ExecSummary, 0, len(statements))
	for i, st := range statements {
		cn.connector.mu.RLock()
		script := cn.connector.scripts[st.Text]
		cn.connector.mu.RUnlock()
		if script == nil {
			results = append(results, driver.ExecSummary{})
			continue
		}
		_, _, sum, _, err, _ := script.snapshot()
		if err != nil {
			if driver.IsFatal(err) {
				cn.markDead()
			}
			return results, &driver.BatchError{Index: i, Cause: err}
		}
		results = append(results, sum)
	}
	return results, nil
}

func (cn *conn) Ping(ctx context.Context) error {
	cn.connector.pingCalls.Add(1)
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed || !cn.alive {
		return &driver.Error{Code: "CONN_DEAD", Message: "connection is not alive", Fatal: true}
	}
	cn.lastActivity = time.Now()
	return nil
}

func (cn *conn) Close() error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return nil
	}
	cn.closed = true
	cn.alive = false
	cn.connector.open.Add(-1)
	return nil
}

func (cn *conn) Alive() bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.alive && !cn.closed
}

func (cn *conn) LastActivity() time.Time {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.lastActivity
}

func (cn *conn) markDead() {
	cn.mu.Lock()
	cn.alive = false
	cn.mu.Unlock()
}

type stmt struct {
	conn   *conn
	text   string
	params map[int]sqltypes.Value
	closed bool
	mu     sync.Mutex
}

func (st *stmt) BindParameter(index int, value sqltypes.Value) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return &driver.Error{Code: "STMT_CLOSED", Message: "statement is closed"}
	}
	st.params[index] = value
	return nil
}

func (st *stmt) Execute(ctx context.Context) (*driver.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	st.conn.connector.mu.RLock()
	script := st.conn.connector.scripts[st.text]
	st.conn.connector.mu.RUnlock()

	st.conn.mu.Lock()
	st.conn.lastActivity = time.Now()
	st.conn.mu.Unlock()

	if script == nil {
		return &driver.Result{}, nil
	}
	cols, rows, sum, out, err, delay := script.snapshot()
	if err != nil {
		if driver.IsFatal(err) {
			st.conn.markDead()
		}
		return nil, err
	}
	res := &driver.Result{Summary: sum, OutParams: out}
	if cols != nil {
		res.Cursor = &cursor{cols: cols, rows: rows, fetchDelay: delay}
	}
	return res, nil
}

func (st *stmt) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
	return nil
}

type cursor struct {
	mu         sync.Mutex
	cols       []driver.Column
	rows       []driver.Row
	next       int
	closed     bool
	fetchDelay time.Duration
}

func (cu *cursor) Columns() []driver.Column { return cu.cols }

func (cu *cursor) FetchNext(ctx context.Context) (driver.Row, error) {
	cu.mu.Lock()
	delay := cu.fetchDelay
	cu.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	cu.mu.Lock()
	defer cu.mu.Unlock()
	if cu.closed {
		return nil, &driver.Error{Code: "CURSOR_CLOSED", Message: "cursor is closed"}
	}
	if cu.next >= len(cu.rows) {
		return nil, io.EOF
	}
	row := cu.rows[cu.next]
	cu.next++
	return row, nil
}

func (cu *cursor) Close() error {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	cu.closed = true
	return nil
}
