package benchmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lahirusamith/mssql-go/client"
	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/driver/mock"
	"github.com/lahirusamith/mssql-go/mapper"
	"github.com/lahirusamith/mssql-go/sqltypes"
	"github.com/lahirusamith/mssql-go/testutil"
)

func benchClient(b *testing.B, connector *mock.Connector) *client.Client {
	b.Helper()
	c, err := client.NewClient(testutil.Options(connector, &client.PoolOptions{
		MaxOpenConnections: 4,
		AcquireTimeout:     time.Second,
	}))
	if err != nil {
		b.Fatalf("failed to construct client: %v", err)
	}
	b.Cleanup(func() { _ = c.Close() })
	return c
}

// BenchmarkClientLifecycle measures client construction and teardown,
// including pool registration.
func BenchmarkClientLifecycle(b *testing.B) {
	connector := mock.NewConnector()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		c, err := client.NewClient(testutil.Options(connector, &client.PoolOptions{
			MaxOpenConnections: 2,
			AcquireTimeout:     time.Second,
		}))
		if err != nil {
			b.Fatalf("failed to construct client: %v", err)
		}
		if err := c.Close(); err != nil {
			b.Fatalf("failed to close client: %v", err)
		}
	}
}

// BenchmarkExecute measures round-trip time for a pooled statement with
// two parameters.
func BenchmarkExecute(b *testing.B) {
	connector := mock.NewConnector()
	connector.OnStatement("UPDATE t SET v = @p1 WHERE id = @p2").WillReturnSummary(1, 0)
	c := benchClient(b, connector)
	ctx := context.Background()

	q, err := sqltypes.Compose("UPDATE t SET v = ", 1, " WHERE id = ", 2)
	if err != nil {
		b.Fatalf("failed to compose query: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := c.Execute(ctx, q); err != nil {
			b.Fatalf("execute failed: %v", err)
		}
	}
}

// BenchmarkQueryStream measures streaming a small result set through the
// cursor, including projection and connection return.
func BenchmarkQueryStream(b *testing.B) {
	connector := mock.NewConnector()
	tuples := make([][]interface{}, 10)
	for i := range tuples {
		tuples[i] = []interface{}{int64(i), fmt.Sprintf("row_%d", i)}
	}
	cols, rows := testutil.Rows([]string{"id", "name"}, tuples...)
	connector.OnStatement("SELECT id, name FROM t").WillReturnRows(cols, rows...)
	c := benchClient(b, connector)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cur, err := c.Query(ctx, sqltypes.Statement("SELECT id, name FROM t"))
		if err != nil {
			b.Fatalf("query failed: %v", err)
		}
		n := 0
		for cur.Next(ctx) {
			n++
		}
		if err := cur.Err(); err != nil {
			b.Fatalf("iteration failed: %v", err)
		}
		if n != 10 {
			b.Fatalf("expected 10 rows, got %d", n)
		}
	}
}

// BenchmarkBatchExecute measures a ten-statement batch round trip.
func BenchmarkBatchExecute(b *testing.B) {
	connector := mock.NewConnector()
	connector.OnStatement("INSERT INTO t VALUES (@p1)").WillReturnSummary(1, 0)
	c := benchClient(b, connector)
	ctx := context.Background()

	queries := make([]*sqltypes.ParameterizedQuery, 10)
	for i := range queries {
		q, err := sqltypes.Compose("INSERT INTO t VALUES (", i, ")")
		if err != nil {
			b.Fatalf("failed to compose query: %v", err)
		}
		queries[i] = q
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := c.BatchExecute(ctx, queries); err != nil {
			b.Fatalf("batch failed: %v", err)
		}
	}
}

// BenchmarkCompose measures query construction with type inference.
func BenchmarkCompose(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, err := sqltypes.Compose(
			"INSERT INTO orders (customer_id, total, placed_at) VALUES (",
			42, ", ", 99.5, ", ", time.Now(), ")")
		if err != nil {
			b.Fatalf("compose failed: %v", err)
		}
	}
}

// BenchmarkShapeProjection measures closed-shape row projection.
func BenchmarkShapeProjection(b *testing.B) {
	shape := mapper.ClosedShape("ID", "Name", "Email", "Active")
	row := driver.Row{
		"id":     int64(1),
		"name":   "ann",
		"email":  "ann@example.com",
		"active": true,
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := shape.Project(row); err != nil {
			b.Fatalf("projection failed: %v", err)
		}
	}
}
