// Package sqlite provides an embedded execution engine for development and
// single-node deployments, behind the same executor port as Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/causeway-db/causeway/internal/core/domain"
	"github.com/causeway-db/causeway/internal/core/port"
)

// Open opens (or creates) the database at path. ":memory:" yields a fresh
// in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}

	// A single writer at a time keeps the driver's lock contention out of
	// the request path.
	db.SetMaxOpenConns(1)

	return db, nil
}

type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs one bound statement in its own transaction, mirroring the
// Postgres executor: reads are wrapped in a LIMIT subquery to cap
// materialized rows, writes report the affected count, and any failure rolls
// the transaction back.
func (e *Executor) Execute(ctx context.Context, stmt port.Statement) (*port.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, stmt.Timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &port.ExecResult{}
	if stmt.Kind.IsWrite() {
		res, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			result.Affected = affected
		}
	} else {
		wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", stmt.SQL, stmt.MaxRows+1)
		rows, err := tx.QueryContext(ctx, wrapped, stmt.Args...)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		result.Rows, result.Truncated, err = rowsToMaps(rows, stmt.MaxRows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(ctx, err)
	}

	return result, nil
}

func rowsToMaps(rows *sql.Rows, maxRows int) ([]map[string]any, bool, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("reading column names: %w", err)
	}

	var result []map[string]any
	truncated := false

	for rows.Next() {
		if len(result) >= maxRows {
			truncated = true
			break
		}
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating rows: %w", err)
	}
	return result, truncated, nil
}

func mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Errorf(domain.KindTimeout, "statement timed out")
	}
	return domain.Errorf(domain.KindExecution, "query execution failed: %v", err)
}
