package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind ErrorKind) *GatewayError {
	t.Helper()
	require.Error(t, err)
	ge, ok := err.(*GatewayError)
	require.True(t, ok, "expected *GatewayError, got %T", err)
	assert.Equal(t, kind, ge.Kind)
	return ge
}

func TestValidate_Select(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate("SELECT id, name FROM acme__users WHERE id = $1", "acme", 1, false)
	require.NoError(t, err)

	assert.Equal(t, StatementSelect, res.Kind)
	assert.False(t, res.Writes)
	assert.Equal(t, []string{"acme__users"}, res.Tables)
	assert.Equal(t, []int{1}, res.Placeholders)
	assert.Equal(t, 1, res.MaxPlaceholder)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "select id, name from acme__users where id = $1", res.Normalized)
	assert.NotEmpty(t, res.Fingerprint)
}

func TestValidate_Idempotent(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")
	sql := "SELECT * FROM acme__orders o JOIN acme__users u ON o.user_id = u.id WHERE o.total > $1"

	first, err := v.Validate(sql, "acme", 1, false)
	require.NoError(t, err)
	second, err := v.Validate(sql, "acme", 1, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidate_WriteStatements(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	tests := []struct {
		sql  string
		kind StatementKind
	}{
		{"INSERT INTO acme__users (id, name) VALUES ($1, $2)", StatementInsert},
		{"UPDATE acme__users SET name = $1 WHERE id = $2", StatementUpdate},
		{"DELETE FROM acme__users WHERE id = $1", StatementDelete},
	}

	for _, tt := range tests {
		res, err := v.Validate(tt.sql, "acme", 2, false)
		require.NoError(t, err, tt.sql)
		assert.Equal(t, tt.kind, res.Kind)
		assert.True(t, res.Writes)
		assert.Equal(t, []string{"acme__users"}, res.Tables)
	}
}

func TestValidate_SyntaxError(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("SELEC id FROM acme__users", "acme", 0, false)
	ge := requireKind(t, err, KindSyntax)
	assert.NotEmpty(t, ge.Preview)
	assert.NotContains(t, ge.Message, "\n")
}

func TestValidate_Empty(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("   ", "acme", 0, false)
	requireKind(t, err, KindSyntax)
}

func TestValidate_StackedStatements(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("SELECT 1; DELETE FROM acme__users", "acme", 0, false)
	ge := requireKind(t, err, KindForbidden)
	assert.Contains(t, ge.Message, "stacked")
}

func TestValidate_TrailingSemicolonAllowed(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate("SELECT id FROM acme__users;", "acme", 0, false)
	require.NoError(t, err)
	assert.Equal(t, StatementSelect, res.Kind)
}

func TestValidate_SemicolonInsideLiteralOrComment(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	// Semicolons inside string literals and comments never lex as statement
	// separators, so neither input counts as stacked.
	_, err := v.Validate("SELECT id FROM acme__logs WHERE msg = 'a; b'", "acme", 0, false)
	require.NoError(t, err)

	_, err = v.Validate("SELECT id FROM acme__logs -- ; DELETE FROM acme__logs", "acme", 0, false)
	require.NoError(t, err)
}

func TestValidate_ForbiddenKeywords(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	tests := []string{
		"CREATE TABLE acme__evil (id int)",
		"DROP TABLE acme__users",
		"ALTER TABLE acme__users ADD COLUMN x int",
		"TRUNCATE acme__users",
		"GRANT ALL ON acme__users TO public",
		"VACUUM",
		"COPY acme__users TO '/tmp/out'",
	}

	for _, sql := range tests {
		_, err := v.Validate(sql, "acme", 0, false)
		requireKind(t, err, KindForbidden)
	}
}

func TestValidate_ForbiddenIdents(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("PRAGMA table_info(acme__users)", "acme", 0, false)
	ge := requireKind(t, err, KindForbidden)
	assert.Contains(t, ge.Message, "PRAGMA")

	_, err = v.Validate("ATTACH DATABASE 'x.db' AS other", "acme", 0, false)
	requireKind(t, err, KindForbidden)
}

func TestValidate_SelectInto(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("SELECT * INTO acme__copy FROM acme__users", "acme", 0, false)
	ge := requireKind(t, err, KindForbidden)
	assert.Contains(t, ge.Message, "SELECT INTO")
}

func TestValidate_NonWhitelistedStatement(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("EXPLAIN SELECT * FROM acme__users", "acme", 0, false)
	requireKind(t, err, KindForbidden)
}

func TestValidate_NamespaceViolation(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("SELECT * FROM users", "acme", 0, false)
	ge := requireKind(t, err, KindNamespace)
	assert.Contains(t, ge.Message, "acme__")
}

func TestValidate_CrossTenantOptIn(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate("SELECT * FROM globex__orders", "acme", 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"globex__orders"}, res.Tables)
}

func TestValidate_SystemTables(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	tests := []string{
		"SELECT * FROM pg_catalog.pg_tables",
		"SELECT * FROM information_schema.tables",
		"SELECT * FROM pg_shadow",
		"SELECT * FROM sqlite_master",
	}

	// System tables stay off limits even with cross-tenant access.
	for _, sql := range tests {
		_, err := v.Validate(sql, "acme", 0, true)
		requireKind(t, err, KindNamespace)
	}
}

func TestValidate_SubqueryTables(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate(
		"SELECT * FROM acme__orders WHERE user_id IN (SELECT id FROM secret_users)",
		"acme", 0, false)
	requireKind(t, err, KindNamespace)
}

func TestValidate_CTE(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"WITH recent AS (SELECT * FROM acme__orders WHERE created_at > $1) SELECT count(*) FROM recent",
		"acme", 1, false)
	require.NoError(t, err)

	// The CTE name is not a table; its body's references are.
	assert.Equal(t, []string{"acme__orders"}, res.Tables)
	assert.False(t, res.Writes)
}

func TestValidate_DataModifyingCTE(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"WITH gone AS (DELETE FROM acme__sessions WHERE expired RETURNING id) SELECT count(*) FROM gone",
		"acme", 0, false)
	require.NoError(t, err)

	assert.Equal(t, StatementSelect, res.Kind)
	assert.True(t, res.Writes)
	assert.Equal(t, []string{"acme__sessions"}, res.Tables)
}

func TestValidate_CTEBodyOutsideNamespace(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate(
		"WITH x AS (SELECT * FROM other__secrets) SELECT * FROM x",
		"acme", 0, false)
	requireKind(t, err, KindNamespace)
}

func TestValidate_ParameterCountMismatch(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	_, err := v.Validate("SELECT * FROM acme__users WHERE id = $2", "acme", 1, false)
	ge := requireKind(t, err, KindParameter)
	assert.Contains(t, ge.Message, "$2")
}

func TestValidate_PlaceholderGapWarning(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"SELECT * FROM acme__users WHERE id = $1 AND age > $3", "acme", 3, false)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, res.Placeholders)
	assert.Equal(t, 3, res.MaxPlaceholder)
	assert.Contains(t, res.Warnings, "placeholder $2 is never used")
}

func TestValidate_RepeatedPlaceholder(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"SELECT * FROM acme__users WHERE first = $1 OR last = $1", "acme", 1, false)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, res.Placeholders)
	assert.Empty(t, res.Warnings)
}

func TestValidate_InlineLiteralWarning(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"SELECT * FROM acme__users WHERE name = 'bob'", "acme", 0, false)
	require.NoError(t, err)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "inline string literal")
}

func TestValidate_InlineLiteralInjectionFingerprint(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate(
		"SELECT * FROM acme__users WHERE name = '1'' OR ''1''=''1'", "acme", 0, false)
	require.NoError(t, err)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "injection") {
			found = true
		}
	}
	assert.True(t, found, "expected an injection-fingerprint warning, got %v", res.Warnings)
}

func TestValidate_LiteralOutsideFilterNoWarning(t *testing.T) {
	t.Parallel()
	v := NewValidator("__")

	res, err := v.Validate("SELECT 'label' AS tag FROM acme__users", "acme", 0, false)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestValidate_CustomSeparator(t *testing.T) {
	t.Parallel()
	v := NewValidator("_t_")

	_, err := v.Validate("SELECT * FROM acme_t_users", "acme", 0, false)
	require.NoError(t, err)

	_, err = v.Validate("SELECT * FROM acme__users", "acme", 0, false)
	requireKind(t, err, KindNamespace)
}
