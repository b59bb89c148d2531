package client_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lahirusamith/mssql-go/client"
	"github.com/lahirusamith/mssql-go/driver"
	"github.com/lahirusamith/mssql-go/driver/mock"
	"github.com/lahirusamith/mssql-go/mapper"
	"github.com/lahirusamith/mssql-go/sqltypes"
	"github.com/lahirusamith/mssql-go/testutil"
)

func poolOpts(maxOpen int) *client.PoolOptions {
	return &client.PoolOptions{MaxOpenConnections: maxOpen, AcquireTimeout: 2 * time.Second}
}

func TestExecuteReportsAffectedRows(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("UPDATE users SET active = @p1").WillReturnSummary(3, 0)

	c := testutil.NewClient(t, connector, poolOpts(2))

	q, err := sqltypes.Compose("UPDATE users SET active = ", true)
	require.NoError(t, err)

	res, err := c.Execute(t.Context(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.AffectedRowCount)
}

func TestExecuteZeroRowsIsNotAnError(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("DELETE FROM users WHERE id = @p1").WillReturnSummary(0, 0)

	c := testutil.NewClient(t, connector, poolOpts(2))

	q, err := sqltypes.Compose("DELETE FROM users WHERE id = ", 99)
	require.NoError(t, err)

	res, err := c.Execute(t.Context(), q)
	require.NoError(t, err)
	assert.Zero(t, res.AffectedRowCount)
}

func TestExecuteSurfacesLastInsertID(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("INSERT INTO users (name) VALUES (@p1)").WillReturnSummary(1, 41)

	c := testutil.NewClient(t, connector, poolOpts(2))

	q, err := sqltypes.Compose("INSERT INTO users (name) VALUES (", sqltypes.NVarchar("ann"), ")")
	require.NoError(t, err)

	res, err := c.Execute(t.Context(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(41), res.LastInsertID)
}

func TestQueryStreamsRowsAndReleasesOnExhaustion(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id", "name"},
		[]interface{}{int64(1), "ann"},
		[]interface{}{int64(2), "bob"})
	connector.OnStatement("SELECT id, name FROM users").WillReturnRows(cols, rows...)

	c := testutil.NewClient(t, connector, poolOpts(2))

	cur, err := c.Query(t.Context(), sqltypes.Statement("SELECT id, name FROM users"))
	require.NoError(t, err)
	defer cur.Close()

	var names []string
	for cur.Next(t.Context()) {
		name, err := cur.Record().GetString("name")
		require.NoError(t, err)
		names = append(names, name)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{"ann", "bob"}, names)

	stats := c.PoolStats()
	assert.Zero(t, stats.ActiveConnections.Load(), "exhausted cursor must release its connection")

	// The released connection is reused, not re-dialed.
	cur2, err := c.Query(t.Context(), sqltypes.Statement("SELECT id, name FROM users"))
	require.NoError(t, err)
	require.NoError(t, cur2.Close())
	assert.Equal(t, 1, connector.ConnectCount())
}

func TestQueryClosedShapeFailsFastOnUndeclaredColumn(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id", "name", "created_at"},
		[]interface{}{int64(1), "ann", "2024-05-01"})
	connector.OnStatement("SELECT * FROM users").WillReturnRows(cols, rows...)

	c := testutil.NewClient(t, connector, poolOpts(2))

	_, err := c.Query(t.Context(), sqltypes.Statement("SELECT * FROM users"), mapper.ClosedShape("id", "name"))
	var fme *mapper.FieldMismatchError
	require.ErrorAs(t, err, &fme)
	assert.Equal(t, "created_at", fme.Column)

	assert.Zero(t, c.PoolStats().ActiveConnections.Load(), "failed open must release the connection")
}

func TestQueryOpenShapeKeepsUndeclaredColumn(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id", "name", "created_at"},
		[]interface{}{int64(1), "ann", "2024-05-01"})
	connector.OnStatement("SELECT * FROM users").WillReturnRows(cols, rows...)

	c := testutil.NewClient(t, connector, poolOpts(2))

	cur, err := c.Query(t.Context(), sqltypes.Statement("SELECT * FROM users"), mapper.OpenShape("ID", "Name"))
	require.NoError(t, err)
	defer cur.Close()

	require.True(t, cur.Next(t.Context()))
	rec := cur.Record()
	assert.Equal(t, "ann", rec["Name"])
	assert.Equal(t, "2024-05-01", rec["created_at"])
}

func TestCursorEarlyCloseReleasesExactlyOnce(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id"},
		[]interface{}{int64(1)}, []interface{}{int64(2)}, []interface{}{int64(3)})
	connector.OnStatement("SELECT id FROM users").WillReturnRows(cols, rows...)

	c := testutil.NewClient(t, connector, poolOpts(1))

	cur, err := c.Query(t.Context(), sqltypes.Statement("SELECT id FROM users"))
	require.NoError(t, err)
	require.True(t, cur.Next(t.Context()))

	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close(), "close must be idempotent")
	assert.False(t, cur.Next(t.Context()), "a closed cursor yields no rows")

	assert.Zero(t, c.PoolStats().ActiveConnections.Load())

	// With maxOpen=1, a leaked release would deadlock this second query.
	cur2, err := c.Query(t.Context(), sqltypes.Statement("SELECT id FROM users"))
	require.NoError(t, err)
	require.NoError(t, cur2.Close())
}

func TestBatchExecuteReturnsResultsInOrder(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("INSERT INTO t VALUES (@p1)").WillReturnSummary(1, 10)
	connector.OnStatement("UPDATE t SET v = @p1").WillReturnSummary(5, 0)

	c := testutil.NewClient(t, connector, poolOpts(2))

	q1, err := sqltypes.Compose("INSERT INTO t VALUES (", 1, ")")
	require.NoError(t, err)
	q2, err := sqltypes.Compose("UPDATE t SET v = ", 2)
	require.NoError(t, err)

	results, err := c.BatchExecute(t.Context(), []*sqltypes.ParameterizedQuery{q1, q2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].AffectedRowCount)
	assert.Equal(t, int64(5), results[1].AffectedRowCount)
}

func TestBatchExecutePartialFailure(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("INSERT INTO t VALUES (@p1)").WillReturnSummary(1, 0)
	connector.OnStatement("INSERT INTO t VALUES (@p1), (@p2)").
		WillReturnError(&driver.Error{Code: "UNIQUE_VIOLATION", Message: "duplicate key"})

	c := testutil.NewClient(t, connector, poolOpts(2))

	q1, err := sqltypes.Compose("INSERT INTO t VALUES (", 1, ")")
	require.NoError(t, err)
	q2, err := sqltypes.Compose("INSERT INTO t VALUES (", 1, "), (", 2, ")")
	require.NoError(t, err)
	q3, err := sqltypes.Compose("INSERT INTO t VALUES (", 3, ")")
	require.NoError(t, err)

	_, err = c.BatchExecute(t.Context(), []*sqltypes.ParameterizedQuery{q1, q2, q3})
	var batchErr *client.BatchExecutionError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.FailedIndex)
	require.Len(t, batchErr.Partial, 1, "only the statement before the failure succeeded")
	assert.Equal(t, int64(1), batchErr.Partial[0].AffectedRowCount)
}

func TestCallCapturesOutParameters(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("EXEC audit_totals @p1").
		WillReturnOutParams(map[string]interface{}{"total": int64(12)})

	c := testutil.NewClient(t, connector, poolOpts(1))

	q, err := sqltypes.Compose("EXEC audit_totals ", 2024)
	require.NoError(t, err)

	res, err := c.Call(t.Context(), q)
	require.NoError(t, err)
	assert.Nil(t, res.Cursor())

	total, err := res.OutParameters.GetInt64("total")
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	assert.Equal(t, int32(1), c.PoolStats().ActiveConnections.Load(),
		"connection stays borrowed until the procedure result is closed")
	require.NoError(t, res.Close())
	require.NoError(t, res.Close(), "close must be idempotent")
	assert.Zero(t, c.PoolStats().ActiveConnections.Load())
}

func TestCallWithResultCursor(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id"}, []interface{}{int64(7)})
	connector.OnStatement("EXEC top_user").
		WillReturnRows(cols, rows...).
		WillReturnOutParams(map[string]interface{}{"count": int64(1)})

	c := testutil.NewClient(t, connector, poolOpts(1))

	res, err := c.Call(t.Context(), sqltypes.Statement("EXEC top_user"))
	require.NoError(t, err)
	defer res.Close()

	cur := res.Cursor()
	require.NotNil(t, cur)
	require.True(t, cur.Next(t.Context()))
	id, err := cur.Record().GetInt64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	require.NoError(t, res.Close())
	assert.Zero(t, c.PoolStats().ActiveConnections.Load())
}

func TestServerRejectionKeepsConnectionUsable(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("SELECT bogus").
		WillReturnError(&driver.Error{Code: "SYNTAX_ERROR", Message: "incorrect syntax"})
	connector.OnStatement("SELECT 1").WillReturnSummary(0, 0)

	c := testutil.NewClient(t, connector, poolOpts(2))

	_, err := c.Execute(t.Context(), sqltypes.Statement("SELECT bogus"))
	var queryErr *client.QueryExecutionError
	require.ErrorAs(t, err, &queryErr)

	_, err = c.Execute(t.Context(), sqltypes.Statement("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, 1, connector.ConnectCount(), "a rejected statement must not burn the connection")
}

func TestFatalErrorBreaksConnection(t *testing.T) {
	connector := mock.NewConnector()
	connector.OnStatement("SELECT crash").
		WillReturnError(&driver.Error{Code: "PROTOCOL_ERROR", Message: "session reset", Fatal: true})
	connector.OnStatement("SELECT 1").WillReturnSummary(0, 0)

	c := testutil.NewClient(t, connector, poolOpts(2))

	_, err := c.Execute(t.Context(), sqltypes.Statement("SELECT crash"))
	var connErr *client.ConnectionError
	require.ErrorAs(t, err, &connErr)

	_, err = c.Execute(t.Context(), sqltypes.Statement("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, 2, connector.ConnectCount(), "a broken connection must be replaced")
}

func TestClosedClientRejectsOperations(t *testing.T) {
	connector := mock.NewConnector()
	c, err := client.NewClient(testutil.Options(connector, poolOpts(1)))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	var closedErr *client.ResourceClosedError
	_, err = c.Execute(t.Context(), sqltypes.Statement("SELECT 1"))
	require.ErrorAs(t, err, &closedErr)
	_, err = c.Query(t.Context(), sqltypes.Statement("SELECT 1"))
	require.ErrorAs(t, err, &closedErr)
	err = c.Close()
	require.ErrorAs(t, err, &closedErr, "double close is a misuse error")
}

func TestConcurrentQueriesRespectPoolCap(t *testing.T) {
	connector := mock.NewConnector()
	cols, rows := testutil.Rows([]string{"id"},
		[]interface{}{int64(1)}, []interface{}{int64(2)})
	connector.OnStatement("SELECT id FROM items").
		WillReturnRows(cols, rows...).
		WithFetchDelay(5 * time.Millisecond)

	c := testutil.NewClient(t, connector, poolOpts(2))

	var wg sync.WaitGroup
	counts := make([]int, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cur, err := c.Query(t.Context(), sqltypes.Statement("SELECT id FROM items"))
			if err != nil {
				t.Errorf("query %d failed: %v", i, err)
				return
			}
			defer cur.Close()
			for cur.Next(t.Context()) {
				counts[i]++
			}
			if err := cur.Err(); err != nil {
				t.Errorf("query %d iteration failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, connector.PeakOpenConns(), 2, "third query must wait for a free connection")
	assert.Equal(t, []int{2, 2, 2}, counts)
}
