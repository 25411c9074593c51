package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/causeway-db/causeway/internal/core/domain"
	"github.com/causeway-db/causeway/internal/core/port"
)

// sqlstate raised when the server cancels a statement that exceeded
// statement_timeout.
const sqlstateQueryCanceled = "57014"

type Executor struct {
	pool *pgxpool.Pool
}

func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs one bound statement inside its own transaction. Reads use a
// read-only access mode and are wrapped in a LIMIT subquery to cap
// materialized rows; writes report the affected count. On any error the
// transaction is rolled back, so a failed request leaves no data-layer trace.
func (e *Executor) Execute(ctx context.Context, stmt port.Statement) (*port.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, stmt.Timeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: accessMode(stmt.Kind)})
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce the timeout at the database level too, so PostgreSQL cancels
	// the query server-side even if the Go context is cancelled first.
	// SET LOCAL scopes to this transaction only.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", stmt.Timeout.Milliseconds())); err != nil {
		return nil, mapError(ctx, err)
	}

	result := &port.ExecResult{}
	if stmt.Kind.IsWrite() {
		tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		result.Affected = tag.RowsAffected()
	} else {
		// LIMIT maxRows+1 so truncation is detectable without materializing
		// the full result set.
		wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", stmt.SQL, stmt.MaxRows+1)
		rows, err := tx.Query(ctx, wrapped, stmt.Args...)
		if err != nil {
			return nil, mapError(ctx, err)
		}
		result.Rows, result.Truncated, err = rowsToMaps(rows, stmt.MaxRows)
		if err != nil {
			return nil, mapError(ctx, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(ctx, err)
	}

	return result, nil
}

func accessMode(kind domain.StatementKind) pgx.TxAccessMode {
	if kind.IsWrite() {
		return pgx.ReadWrite
	}
	return pgx.ReadOnly
}

// mapError classifies engine failures into the gateway taxonomy. Only the
// server's primary message is forwarded; detail, hint and schema context stay
// inside the gateway.
func mapError(ctx context.Context, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == sqlstateQueryCanceled {
			return domain.Errorf(domain.KindTimeout, "statement timed out")
		}
		return domain.Errorf(domain.KindExecution, "%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Errorf(domain.KindTimeout, "statement timed out")
	}
	return domain.Errorf(domain.KindExecution, "query execution failed: %v", err)
}
