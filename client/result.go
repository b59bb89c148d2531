package client

import (
	"sync"

	"github.com/lahirusamith/mssql-go/mapper"
)

// ExecutionResult is the outcome of one non-result-set statement.
type ExecutionResult struct {
	// AffectedRowCount is the number of rows the statement changed. A
	// statement that matched no rows reports zero; that is not an error.
	AffectedRowCount int64

	// LastInsertID is the identity value generated by the statement, or
	// zero when none was generated.
	LastInsertID int64
}

// ProcedureResult is the outcome of a stored-procedure call: output
// parameters plus an optional result cursor. The caller must Close it to
// release the borrowed connection, whether or not a cursor was produced.
type ProcedureResult struct {
	// OutParameters holds the procedure's output parameters by name.
	OutParameters mapper.Record

	cursor *Cursor

	mu       sync.Mutex
	pool     *ConnectionPool
	pc       *pooledConn
	released bool
}

// Cursor returns the procedure's result cursor, or nil when the procedure
// produced no result set.
func (r *ProcedureResult) Cursor() *Cursor { return r.cursor }

// Close releases the borrowed connection. When the procedure produced a
// cursor, the cursor owns the connection and is closed instead. Close is
// idempotent.
func (r *ProcedureResult) Close() error {
	if r.cursor != nil {
		return r.cursor.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	r.pool.release(r.pc)
	return nil
}
