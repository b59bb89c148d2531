package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/mapper"
	"github.com/lahirusamith/mssql-go/sqltypes"
)

// Execute runs a statement that produces no result set and reports how
// many rows it affected. A statement matching zero rows is a success with
// a zero count, not an error.
func (c *Client) Execute(ctx context.Context, q *sqltypes.ParameterizedQuery) (*ExecutionResult, error) {
	pc, traceID, err := c.begin(ctx, "execute", q)
	if err != nil {
		return nil, err
	}
	defer c.pool.release(pc)

	res, stmt, err := c.dispatch(ctx, pc, q, traceID)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	// A result set from an execute-style statement is discarded unread.
	if res.Cursor != nil {
		if err := res.Cursor.Close(); err != nil {
			c.logger.Warn("error discarding result set",
				String("trace_id", traceID),
				Error("error", err))
		}
	}

	return &ExecutionResult{
		AffectedRowCount: res.Summary.RowsAffected,
		LastInsertID:     res.Summary.LastInsertID,
	}, nil
}

// Query runs a statement and returns a Cursor streaming its result set.
// Rows are materialized lazily on Cursor.Next; the borrowed connection is
// released when the cursor is exhausted or closed. An optional shape
// controls the projection; with a closed shape, server column metadata is
// checked here so undeclared columns fail before any row is consumed.
func (c *Client) Query(ctx context.Context, q *sqltypes.ParameterizedQuery, shape ...*mapper.Shape) (*Cursor, error) {
	target := mapper.OpenShape()
	if len(shape) > 0 && shape[0] != nil {
		target = shape[0]
	}

	pc, traceID, err := c.begin(ctx, "query", q)
	if err != nil {
		return nil, err
	}

	res, stmt, err := c.dispatch(ctx, pc, q, traceID)
	if err != nil {
		c.pool.release(pc)
		return nil, err
	}

	if res.Cursor == nil {
		stmt.Close()
		c.pool.release(pc)
		return newEmptyCursor(), nil
	}

	if err := target.Validate(res.Cursor.Columns()); err != nil {
		res.Cursor.Close()
		stmt.Close()
		c.pool.release(pc)
		return nil, err
	}

	// Connection ownership transfers to the cursor.
	return newCursor(res.Cursor, stmt, target, c.pool, pc, c.logger, traceID), nil
}

// BatchExecute submits the queries as one batch, executed in submission
// order, and returns per-statement results in that order. On partial
// failure the returned error is a BatchExecutionError carrying the results
// of the statements that succeeded and the index of the first failure; the
// remainder is not retried.
func (c *Client) BatchExecute(ctx context.Context, queries []*sqltypes.ParameterizedQuery) ([]ExecutionResult, error) {
	if c.closed.Load() {
		return nil, &ResourceClosedError{Resource: "client"}
	}
	if len(queries) == 0 {
		return nil, nil
	}

	traceID := c.traceID()
	statements := make([]driver.BatchStatement, len(queries))
	for i, q := range queries {
		statements[i] = driver.BatchStatement{Text: q.SQL(), Params: q.Parameters()}
	}

	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, errAcquireFailed(err)
	}
	defer c.pool.release(pc)

	if c.IsDebugMode() {
		c.logger.Debug("dispatching batch",
			String("trace_id", traceID),
			Int("statements", len(statements)))
	}

	start := time.Now()
	summaries, err := pc.conn.ExecuteBatch(ctx, statements)
	results := make([]ExecutionResult, len(summaries))
	for i, s := range summaries {
		results[i] = ExecutionResult{AffectedRowCount: s.RowsAffected, LastInsertID: s.LastInsertID}
	}

	if err != nil {
		if driver.IsFatal(err) {
			pc.broken = true
		}
		if be, ok := err.(*driver.BatchError); ok {
			return nil, &BatchExecutionError{
				Partial:     results,
				FailedIndex: be.Index,
				Cause:       be.Cause,
			}
		}
		return nil, c.mapDriverError(err, "batch")
	}

	if c.IsDebugMode() {
		c.logger.Debug("batch executed",
			String("trace_id", traceID),
			Int("statements", len(results)),
			Duration("duration", time.Since(start)))
	}
	return results, nil
}

// Call invokes a stored procedure and captures its output parameters plus
// an optional result cursor. The caller must Close the returned
// ProcedureResult to release the borrowed connection, even when the
// procedure produced no result set.
func (c *Client) Call(ctx context.Context, q *sqltypes.ParameterizedQuery, shape ...*mapper.Shape) (*ProcedureResult, error) {
	target := mapper.OpenShape()
	if len(shape) > 0 && shape[0] != nil {
		target = shape[0]
	}

	pc, traceID, err := c.begin(ctx, "call", q)
	if err != nil {
		return nil, err
	}

	res, stmt, err := c.dispatch(ctx, pc, q, traceID)
	if err != nil {
		c.pool.release(pc)
		return nil, err
	}

	out := make(mapper.Record, len(res.OutParams))
	for k, v := range res.OutParams {
		out[k] = v
	}
	result := &ProcedureResult{OutParameters: out, pool: c.pool, pc: pc}

	if res.Cursor == nil {
		stmt.Close()
		// Connection stays borrowed until the caller closes the result.
		return result, nil
	}

	if err := target.Validate(res.Cursor.Columns()); err != nil {
		res.Cursor.Close()
		stmt.Close()
		c.pool.release(pc)
		return nil, err
	}

	result.cursor = newCursor(res.Cursor, stmt, target, c.pool, pc, c.logger, traceID)
	return result, nil
}

// begin guards against a closed client and acquires a connection.
func (c *Client) begin(ctx context.Context, op string, q *sqltypes.ParameterizedQuery) (*pooledConn, string, error) {
	if c.closed.Load() {
		return nil, "", &ResourceClosedError{Resource: "client"}
	}

	traceID := c.traceID()
	if c.IsDebugMode() {
		c.logger.Debug("acquiring connection",
			String("op", op),
			String("trace_id", traceID),
			String("query", q.SQL()))
	}

	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, "", errAcquireFailed(err)
	}
	return pc, traceID, nil
}

// dispatch prepares the statement, binds parameters in declaration order,
// and executes it. A failure during send marks the connection broken when
// the driver reports it fatal; the caller always releases the connection.
func (c *Client) dispatch(ctx context.Context, pc *pooledConn, q *sqltypes.ParameterizedQuery, traceID string) (*driver.Result, driver.Stmt, error) {
	text := q.SQL()

	stmt, err := pc.conn.Prepare(ctx, text)
	if err != nil {
		if driver.IsFatal(err) {
			pc.broken = true
		}
		return nil, nil, c.mapDriverError(err, text)
	}

	for i, v := range q.Parameters() {
		if err := stmt.BindParameter(i+1, v); err != nil {
			stmt.Close()
			return nil, nil, &QueryExecutionError{
				Code:    "E_BIND_FAILED",
				Message: "failed to bind parameter",
				Query:   text,
				Details: map[string]interface{}{"index": i + 1, "sqlType": v.Tag.String()},
				Cause:   err,
			}
		}
	}

	start := time.Now()
	res, err := stmt.Execute(ctx)
	if err != nil {
		if driver.IsFatal(err) {
			pc.broken = true
		}
		stmt.Close()
		return nil, nil, c.mapDriverError(err, text)
	}

	if c.IsDebugMode() {
		c.logger.Debug("statement dispatched",
			String("trace_id", traceID),
			Duration("duration", time.Since(start)),
			Bool("hasResultSet", res.Cursor != nil))
	}
	return res, stmt, nil
}

// mapDriverError folds a driver failure into the client taxonomy: fatal
// protocol failures surface as ConnectionError, server rejections as
// QueryExecutionError.
func (c *Client) mapDriverError(err error, query string) error {
	if driver.IsFatal(err) {
		return &ConnectionError{
			Code:    "E_CONNECTION_BROKEN",
			Message: "connection failed during statement dispatch",
			Cause:   err,
		}
	}
	return &QueryExecutionError{
		Code:    "E_QUERY_REJECTED",
		Message: "server rejected statement",
		Query:   query,
		Cause:   err,
	}
}

func (c *Client) traceID() string {
	return uuid.New().String()
}
