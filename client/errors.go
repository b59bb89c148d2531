package client

import (
	"fmt"
	"time"
)

// ConnectionError represents a failure to reach or authenticate to the
// server, or a session that broke mid-operation.
type ConnectionError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *ConnectionError) Unwrap() error { return e.Cause }

// PoolTimeoutError is returned when an acquire waited for the configured
// timeout without a connection becoming available.
type PoolTimeoutError struct {
	Waited  time.Duration
	MaxOpen int
}

// Error implements the error interface.
func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("E_POOL_TIMEOUT: no connection available after %s (maxOpen=%d)", e.Waited, e.MaxOpen)
}

// PoolExhaustedError is returned when the pool is at capacity and no
// acquire wait is configured.
type PoolExhaustedError struct {
	MaxOpen int
}

// Error implements the error interface.
func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("E_POOL_EXHAUSTED: pool at capacity (maxOpen=%d) and no wait configured", e.MaxOpen)
}

// QueryExecutionError represents a statement the server rejected: syntax
// error, constraint violation, permission failure.
type QueryExecutionError struct {
	Code    string
	Message string
	Query   string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QueryExecutionError) Unwrap() error { return e.Cause }

// BatchExecutionError reports a batch that failed part-way through. Partial
// holds the results of the statements that succeeded, in submission order;
// FailedIndex is the 0-based position of the first failing statement.
type BatchExecutionError struct {
	Partial     []ExecutionResult
	FailedIndex int
	Cause       error
}

// Error implements the error interface.
func (e *BatchExecutionError) Error() string {
	return fmt.Sprintf("E_BATCH_FAILED: statement %d failed after %d succeeded (caused by: %v)",
		e.FailedIndex, len(e.Partial), e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BatchExecutionError) Unwrap() error { return e.Cause }

// ResourceClosedError is returned for operations attempted on a closed
// client, cursor, or procedure result.
type ResourceClosedError struct {
	Resource string
}

// Error implements the error interface.
func (e *ResourceClosedError) Error() string {
	return fmt.Sprintf("E_RESOURCE_CLOSED: %s is closed", e.Resource)
}

// errAcquireFailed wraps a pool/driver failure into a ConnectionError
// unless it already carries one of the pool's typed errors.
func errAcquireFailed(cause error) error {
	switch cause.(type) {
	case *PoolTimeoutError, *PoolExhaustedError, *ConnectionError, *ResourceClosedError:
		return cause
	}
	return &ConnectionError{
		Code:    "E_ACQUIRE_FAILED",
		Message: "could not acquire a connection",
		Cause:   cause,
	}
}
