// Package duckdb provides the DuckDB helpers used by the sink: opening a
// database, a small ORM over tagged structs and a SELECT builder.
//
// # ORM
//
//	type Measurement struct {
//	    ID   string `duckdb:"id,pk"`
//	    Name string `duckdb:"operation_name"`
//	}
//
//	table := duckdb.NewTable[Measurement](db, "measurements")
//	err := table.Insert(ctx, &Measurement{...})
//
// A Table accepts any Execer, so the same type works on a *sql.DB or
// inside a *sql.Tx.
//
// # Query Builder
//
//	sql, args, err := duckdb.NewQueryBuilder("measurements").
//	    Select("id", "operation_name", "duration_ms").
//	    Eq("operation_name", name).
//	    OrderBy("-captured_at").
//	    Limit(100).
//	    Build()
//
// Empty string filters are skipped, giving wildcard behavior.
package duckdb
