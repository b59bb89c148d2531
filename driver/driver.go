// Package driver defines the contract between the client library and an
// underlying wire-protocol implementation. The byte-level protocol itself
// (framing, authentication handshake, TLS negotiation) lives behind these
// interfaces and is not part of this module.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/lahirusamith/mssql-go/sqltypes"
)

// Config carries the connection parameters a Connector needs to reach and
// authenticate to the server. Certificate files referenced here are loaded
// by the driver, not by the client library.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// LoginTimeout bounds the initial connect/authenticate round trip.
	LoginTimeout time.Duration

	// Secure transport options, passed through verbatim.
	Encrypt                bool
	TrustServerCertificate bool
	CAFile                 string
	CertFile               string
	KeyFile                string
	KeyPassword            string

	// Session holds session-level options applied after login, such as the
	// default schema.
	Session map[string]string
}

// Column describes one column of a server result set.
type Column struct {
	Name     string
	TypeName string
}

// Row is one fetched row as column-name/value pairs.
type Row map[string]interface{}

// Connector opens physical connections. Implementations must be safe for
// concurrent use; the pool calls Connect from multiple goroutines.
type Connector interface {
	Connect(ctx context.Context, cfg Config) (Conn, error)
}

// Conn is a single physical connection to the server. A Conn is never used
// concurrently; the pool hands it to exactly one borrower at a time.
type Conn interface {
	// Prepare compiles a statement for execution on this connection.
	Prepare(ctx context.Context, text string) (Stmt, error)

	// ExecuteBatch submits the statements as one server round trip and
	// returns per-statement summaries in submission order. On partial
	// failure it returns the summaries of the statements that succeeded
	// together with a *BatchError naming the first failing index.
	ExecuteBatch(ctx context.Context, statements []BatchStatement) ([]ExecSummary, error)

	// Ping verifies the session is still usable.
	Ping(ctx context.Context) error

	// Close tears the physical connection down.
	Close() error

	// Alive reports whether the driver still considers the session valid.
	Alive() bool

	// LastActivity returns the time of the last successful operation,
	// used by the pool's idle-timeout bookkeeping.
	LastActivity() time.Time
}

// BatchStatement is one pre-rendered statement in a batch submission.
type BatchStatement struct {
	Text   string
	Params []sqltypes.Value
}

// ExecSummary is the outcome of one non-result-set statement.
type ExecSummary struct {
	RowsAffected int64
	LastInsertID int64
}

// Stmt is a prepared statement bound to its connection.
type Stmt interface {
	// BindParameter binds the value at the given 1-based position.
	// Parameters are always bound in declaration order.
	BindParameter(index int, value sqltypes.Value) error

	// Execute dispatches the statement and returns its result. For
	// statements producing a result set, Result.Cursor is non-nil and rows
	// are fetched lazily from it.
	Execute(ctx context.Context) (*Result, error)

	// Close releases server-side statement resources.
	Close() error
}

// Result is the outcome of executing a prepared statement.
type Result struct {
	Summary ExecSummary

	// Cursor streams the result set, or nil when the statement produced
	// none.
	Cursor Cursor

	// OutParams holds procedure output parameters keyed by name, or nil.
	OutParams map[string]interface{}
}

// Cursor is a server-side result-set handle. FetchNext returns io.EOF when
// the server signals end of results.
type Cursor interface {
	Columns() []Column
	FetchNext(ctx context.Context) (Row, error)
	Close() error
}

// Error is the error type drivers report. Fatal errors mean the session is
// unusable and the owning connection must be discarded, not reused.
type Error struct {
	Code    string
	Message string
	Fatal   bool
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// BatchError reports a batch that failed part-way through. Index is the
// 0-based position of the first statement the server rejected.
type BatchError struct {
	Index int
	Cause error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch statement %d failed: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BatchError) Unwrap() error { return e.Cause }

// IsFatal reports whether err (or anything it wraps) is a fatal driver
// error, meaning the connection it occurred on is broken.
func IsFatal(err error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Fatal {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
