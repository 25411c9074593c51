package port

import (
	"context"
	"time"

	"github.com/causeway-db/causeway/internal/core/domain"
)

// Statement is a fully bound, admission-cleared statement ready for the
// storage engine.
type Statement struct {
	SQL     string
	Args    []any
	Kind    domain.StatementKind
	Timeout time.Duration
	MaxRows int
}

// ExecResult is the engine-level outcome. Rows is nil for write statements;
// Truncated is set when the row cap cut the result short.
type ExecResult struct {
	Rows      []map[string]any
	Affected  int64
	Truncated bool
}

// QueryExecutor drives the underlying storage engine with engine-native text
// and positional arguments.
type QueryExecutor interface {
	Execute(ctx context.Context, stmt Statement) (*ExecResult, error)
}
