package duckdb

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" driver
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ""

// OpenDB opens a DuckDB database. An empty DSN or ":memory:" opens an
// in-memory database.
func OpenDB(dsn string) (*sql.DB, error) {
	if dsn == ":memory:" {
		dsn = MemoryDSN
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", dsn, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb %q: %w", dsn, err)
	}

	return db, nil
}
