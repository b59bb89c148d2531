// Package testutil provides helpers for testing code built on the client
// library, wiring a client to the in-memory mock driver.
package testutil

import (
	"testing"
	"time"

	"github.com/lahirusamith/mssql-go/client"
	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/driver/mock"
)

// Options returns client options wired to the given mock connector, with
// quiet logging and a private single-connection-friendly pool sized for
// tests. Callers may adjust fields before constructing the client.
func Options(connector *mock.Connector, pool *client.PoolOptions) client.Options {
	return client.Options{
		Connector:    connector,
		Host:         "localhost",
		Port:         1433,
		User:         "sa",
		Password:     "test",
		Database:     "testdb",
		LoginTimeout: 2 * time.Second,
		Pool:         pool,
		Logger:       client.NewNoopLogger(),
	}
}

// NewClient constructs a client over the connector and registers cleanup.
// The pool argument may be nil to use the process-wide shared pool.
func NewClient(t *testing.T, connector *mock.Connector, pool *client.PoolOptions) *client.Client {
	t.Helper()
	c, err := client.NewClient(Options(connector, pool))
	if err != nil {
		t.Fatalf("failed to construct test client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Rows builds driver rows from column names and value tuples, keeping
// fixtures compact:
//
//	cols, rows := testutil.Rows([]string{"id", "name"}, []interface{}{1, "ann"}, []interface{}{2, "bob"})
func Rows(columns []string, tuples ...[]interface{}) ([]driver.Column, []driver.Row) {
	cols := make([]driver.Column, len(columns))
	for i, name := range columns {
		cols[i] = driver.Column{Name: name}
	}
	rows := make([]driver.Row, len(tuples))
	for i, tuple := range tuples {
		row := make(driver.Row, len(columns))
		for j, name := range columns {
			if j < len(tuple) {
				row[name] = tuple[j]
			}
		}
		rows[i] = row
	}
	return cols, rows
}
