// Package mssql is a client library for Microsoft SQL Server. It layers
// parameterized statement dispatch, shared connection pooling and lazy
// result streaming over a pluggable wire driver.
//
// The subpackages carry the implementation; this package re-exports the
// surface most applications need so typical usage stays on one import:
//
//	c, err := mssql.NewClient(mssql.Options{
//	    Connector: connector,
//	    Host:      "db.internal",
//	    Port:      1433,
//	    User:      "app",
//	    Password:  password,
//	    Database:  "orders",
//	})
//	if err != nil { ... }
//	defer c.Close()
//
//	q, err := mssql.Compose("SELECT id, total FROM orders WHERE customer_id = ", customerID)
//	if err != nil { ... }
//	cur, err := c.Query(ctx, q)
//	if err != nil { ... }
//	defer cur.Close()
//	for cur.Next(ctx) {
//	    rec := cur.Record()
//	    ...
//	}
package mssql

import (
	"github.com/lahirusamith/mssql-go/client"
	"github.com/lahirusamith/mssql-go/mapper"
	"github.com/lahirusamith/mssql-go/sqltypes"
)

// Core client surface.
type (
	Client          = client.Client
	Options         = client.Options
	PoolOptions     = client.PoolOptions
	PoolStats       = client.PoolStats
	Cursor          = client.Cursor
	ExecutionResult = client.ExecutionResult
	ProcedureResult = client.ProcedureResult
)

// Query construction and row projection.
type (
	Query  = sqltypes.ParameterizedQuery
	Value  = sqltypes.Value
	Record = mapper.Record
	Shape  = mapper.Shape
)

// Error taxonomy.
type (
	ConnectionError     = client.ConnectionError
	PoolTimeoutError    = client.PoolTimeoutError
	PoolExhaustedError  = client.PoolExhaustedError
	QueryExecutionError = client.QueryExecutionError
	BatchExecutionError = client.BatchExecutionError
	ResourceClosedError = client.ResourceClosedError
	FieldMismatchError  = mapper.FieldMismatchError
	TypeMismatchError   = mapper.TypeMismatchError
)

// NewClient creates a client and attaches it to its connection pool.
func NewClient(opts Options) (*Client, error) {
	return client.NewClient(opts)
}

// DefaultPoolOptions returns the pool configuration used when a client
// supplies none.
func DefaultPoolOptions() PoolOptions {
	return client.DefaultPoolOptions()
}

// ShutdownPools closes every registered pool with no attached clients.
func ShutdownPools() {
	client.ShutdownPools()
}

// Compose builds a query from an alternating sequence of string literals
// and parameter values.
func Compose(parts ...interface{}) (*Query, error) {
	return sqltypes.Compose(parts...)
}

// NewQuery builds a query from literal fragments and the parameters that
// sit between them.
func NewQuery(fragments []string, params ...interface{}) (*Query, error) {
	return sqltypes.NewQuery(fragments, params...)
}

// Statement builds a query with no parameters from raw SQL text.
func Statement(text string) *Query {
	return sqltypes.Statement(text)
}

// Varchar wraps a string as a VARCHAR parameter. Raw strings passed to
// Compose are treated as SQL text, so string parameters must be typed.
func Varchar(s string) Value {
	return sqltypes.Varchar(s)
}

// NVarchar wraps a string as an NVARCHAR parameter.
func NVarchar(s string) Value {
	return sqltypes.NVarchar(s)
}

// OpenShape returns a projection shape that accepts every server column.
func OpenShape(fields ...string) *Shape {
	return mapper.OpenShape(fields...)
}

// ClosedShape returns a projection shape that rejects undeclared columns.
func ClosedShape(fields ...string) *Shape {
	return mapper.ClosedShape(fields...)
}
