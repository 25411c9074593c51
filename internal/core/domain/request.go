package domain

import "time"

// StatementKind classifies an accepted statement.
type StatementKind string

const (
	StatementSelect StatementKind = "select"
	StatementInsert StatementKind = "insert"
	StatementUpdate StatementKind = "update"
	StatementDelete StatementKind = "delete"
)

// IsWrite reports whether the statement kind mutates data.
func (k StatementKind) IsWrite() bool {
	return k == StatementInsert || k == StatementUpdate || k == StatementDelete
}

// QueryRequest is a single tenant-submitted statement. Tenant comes from the
// trusted transport layer and is never read from the query body or arguments.
type QueryRequest struct {
	Tenant      string
	SQL         string
	Params      []any
	AllowWrite  bool
	CrossTenant bool          // explicitly permit tables outside the tenant's namespace
	Timeout     time.Duration // 0 means the gateway default
	MaxRows     int           // 0 means the gateway default
}

// QueryResult is the outcome of a completed execution.
type QueryResult struct {
	Rows      []map[string]any
	RowCount  int
	Affected  int64
	Truncated bool
	Elapsed   time.Duration
	Warnings  []string
}

// ValidationResult holds the facts the validator extracted from an accepted
// statement. Validation is pure: identical input always yields an identical
// result.
type ValidationResult struct {
	Kind   StatementKind
	Writes bool // Kind is a write, or a data-modifying CTE hides under a SELECT

	// Tables referenced anywhere in the statement (FROM/JOIN/INTO/UPDATE,
	// subqueries and CTE bodies), aliases resolved, CTE names excluded.
	// Sorted and deduplicated.
	Tables []string

	// Distinct placeholder numbers in ascending order, and the highest one.
	Placeholders   []int
	MaxPlaceholder int

	Warnings []string

	// Normalized is a whitespace-collapsed, case-folded grouping key;
	// Fingerprint is the engine parser's structural fingerprint.
	Normalized  string
	Fingerprint string
}
