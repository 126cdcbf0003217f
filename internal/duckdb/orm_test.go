package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	ID        string    `duckdb:"id,pk"`
	Name      string    `duckdb:"name"`
	Count     int64     `duckdb:"count"`
	CreatedAt time.Time `duckdb:"created_at"`
	Ignored   string
}

func TestTable_InsertAndQuery(t *testing.T) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE rows (id TEXT PRIMARY KEY, name TEXT, count BIGINT, created_at TIMESTAMP)`)
	require.NoError(t, err)

	table := NewTable[testRow](db, "rows")
	assert.Equal(t, []string{"id", "name", "count", "created_at"}, table.Columns())

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, table.Insert(ctx, &testRow{ID: "a", Name: "first", Count: 1, CreatedAt: now}))
	require.NoError(t, table.Insert(ctx, &testRow{ID: "b", Name: "second", Count: 2, CreatedAt: now.Add(time.Second)}))

	rows, err := table.Query(ctx, NewQueryBuilder("rows").OrderBy("-created_at"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Name)
	assert.Equal(t, int64(2), rows[0].Count)
	assert.True(t, rows[1].CreatedAt.Equal(now))

	filtered, err := table.Query(ctx, NewQueryBuilder("rows").Eq("name", "first"))
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].ID)
}

func TestTable_InsertDuplicateFails(t *testing.T) {
	db, err := OpenDB("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE rows (id TEXT PRIMARY KEY, name TEXT, count BIGINT, created_at TIMESTAMP)`)
	require.NoError(t, err)

	table := NewTable[testRow](db, "rows")
	require.NoError(t, table.Insert(ctx, &testRow{ID: "a"}))
	assert.Error(t, table.Insert(ctx, &testRow{ID: "a"}))
}

func TestIsTransactionConflict(t *testing.T) {
	assert.False(t, IsTransactionConflict(nil))
	assert.False(t, IsTransactionConflict(errors.New("Catalog Error: Table with name rows does not exist")))
	assert.True(t, IsTransactionConflict(errors.New("TransactionContext Error: Conflict on update")))
}

// flakyExecer fails the first conflicts calls with a write conflict.
type flakyExecer struct {
	conflicts int
	calls     int
}

func (e *flakyExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	e.calls++
	if e.calls <= e.conflicts {
		return nil, errors.New("TransactionContext Error: Conflict on update")
	}
	return nil, nil
}

func (e *flakyExecer) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func TestTable_InsertRetriesConflictsOutsideTransaction(t *testing.T) {
	execer := &flakyExecer{conflicts: 2}
	table := NewTable[testRow](execer, "rows")

	require.NoError(t, table.Insert(context.Background(), &testRow{ID: "a"}))
	assert.Equal(t, 3, execer.calls)
}

func TestTable_InsertInsideTransactionDoesNotRetry(t *testing.T) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE rows (id TEXT PRIMARY KEY, name TEXT, count BIGINT, created_at TIMESTAMP)`)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	table := NewTable[testRow](tx, "rows")
	assert.False(t, table.retryConflicts)
	assert.True(t, NewTable[testRow](db, "rows").retryConflicts)

	require.NoError(t, table.Insert(ctx, &testRow{ID: "a"}))
	require.Error(t, table.Insert(ctx, &testRow{ID: "a"}))

	// The transaction is now aborted; the insert fails at once instead of
	// backing off against a transaction that can never commit.
	start := time.Now()
	assert.Error(t, table.Insert(ctx, &testRow{ID: "b"}))
	assert.Less(t, time.Since(start), ConflictRetry.MaxBackoff)
}
