package domain

import "strconv"

// Dialect captures the engine-specific behavior the binder needs: the shape of
// native positional markers and whether the engine has a real boolean type.
type Dialect interface {
	Name() string
	// Placeholder returns the native marker for the n-th bound argument (1-based).
	Placeholder(n int) string
	// NativeBool reports whether the engine stores booleans natively. Engines
	// without one receive 0/1 integers instead.
	NativeBool() bool
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) NativeBool() bool         { return true }

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) NativeBool() bool       { return false }

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)
