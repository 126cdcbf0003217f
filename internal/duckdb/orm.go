package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coral-mesh/coral-collect/internal/retry"
)

// Execer is an interface that matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Table represents a generic database table wrapper for type T.
type Table[T any] struct {
	db        Execer
	tableName string
	columns   []string
	fieldMap  map[string]int // Map column name to field index

	// retryConflicts is false inside a transaction: DuckDB aborts the
	// transaction on conflict, so only the caller can retry it.
	retryConflicts bool
}

// ConflictRetry retries DuckDB transaction conflicts.
var ConflictRetry = retry.Config{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Jitter:         0.1,
}

// NewTable creates a new Table[T] instance.
// T must be a struct with `duckdb` tags.
func NewTable[T any](db Execer, tableName string) *Table[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("Table generic type T must be a struct")
	}

	var columns []string
	fieldMap := make(map[string]int)

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}
		colName := strings.TrimSpace(strings.Split(tag, ",")[0])
		columns = append(columns, colName)
		fieldMap[colName] = i
	}

	_, inTx := db.(*sql.Tx)

	return &Table[T]{
		db:             db,
		tableName:      tableName,
		columns:        columns,
		fieldMap:       fieldMap,
		retryConflicts: !inTx,
	}
}

// Columns returns the column names in struct field order.
func (t *Table[T]) Columns() []string {
	return t.columns
}

// Insert inserts a new item into the database. Outside a transaction it
// retries on transaction conflicts.
func (t *Table[T]) Insert(ctx context.Context, item *T) error {
	placeholders := make([]string, len(t.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	// #nosec G201 - table and column names are not user input, they come from struct tags
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.tableName,
		strings.Join(t.columns, ", "),
		strings.Join(placeholders, ", "),
	)
	values := t.values(item)

	exec := func() error {
		_, err := t.db.ExecContext(ctx, query, values...)
		return err
	}
	if !t.retryConflicts {
		return exec()
	}
	return retry.Do(ctx, ConflictRetry, exec, IsTransactionConflict)
}

// Query runs a SELECT built for this table and scans every row into T.
// The builder's columns are replaced with the table's columns.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]*T, error) {
	b.columns = t.columns
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		item, err := t.scanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.tableName, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.tableName, err)
	}
	return items, nil
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	values := make([]any, len(t.columns))
	for i, col := range t.columns {
		values[i] = val.Field(t.fieldMap[col]).Interface()
	}
	return values
}

// scanRows scans the current row from rows into T.
func (t *Table[T]) scanRows(rows *sql.Rows) (*T, error) {
	var item T
	val := reflect.ValueOf(&item).Elem()
	dest := make([]any, len(t.columns))

	for i, col := range t.columns {
		dest[i] = val.Field(t.fieldMap[col]).Addr().Interface()
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return &item, nil
}

// IsTransactionConflict reports whether err is a DuckDB write conflict that
// a fresh transaction may not hit.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
