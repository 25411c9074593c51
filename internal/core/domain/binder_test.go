package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind_Postgres(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT * FROM acme__users WHERE id = $1 AND age > $2",
		[]any{int64(7), int64(21)}, Postgres)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM acme__users WHERE id = $1 AND age > $2", bound.Text)
	assert.Equal(t, []any{int64(7), int64(21)}, bound.NativeArgs(Postgres))
}

func TestBind_SQLiteMarkers(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT * FROM acme__users WHERE id = $1 AND age > $2",
		[]any{int64(7), int64(21)}, SQLite)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM acme__users WHERE id = ? AND age > ?", bound.Text)
}

func TestBind_OutOfOrder(t *testing.T) {
	t.Parallel()

	// $2 appears textually before $1; arguments follow marker order.
	bound, err := Bind("SELECT * FROM acme__t WHERE b = $2 AND a = $1",
		[]any{"first", "second"}, Postgres)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM acme__t WHERE b = $1 AND a = $2", bound.Text)
	assert.Equal(t, []any{"second", "first"}, bound.NativeArgs(Postgres))
}

func TestBind_RepeatedPlaceholder(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT * FROM acme__t WHERE a = $1 OR b = $1",
		[]any{"x"}, Postgres)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM acme__t WHERE a = $1 OR b = $2", bound.Text)
	assert.Equal(t, []any{"x", "x"}, bound.NativeArgs(Postgres))
}

func TestBind_MissingArgument(t *testing.T) {
	t.Parallel()

	_, err := Bind("SELECT * FROM acme__t WHERE a = $1 AND b = $3",
		[]any{"only one"}, Postgres)
	ge := requireKind(t, err, KindParameter)
	assert.Contains(t, ge.Message, "$3")
}

func TestBind_BadArgumentNamesPosition(t *testing.T) {
	t.Parallel()

	_, err := Bind("SELECT * FROM acme__t WHERE a = $1 AND b = $2",
		[]any{"fine", struct{ X int }{1}}, Postgres)
	ge := requireKind(t, err, KindParameter)
	assert.Contains(t, ge.Message, "argument 2")
}

func TestBind_DollarInsideLiteralUntouched(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT * FROM acme__t WHERE label = '$1' AND id = $1",
		[]any{int64(5)}, SQLite)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM acme__t WHERE label = '$1' AND id = ?", bound.Text)
	assert.Equal(t, []any{int64(5)}, bound.NativeArgs(SQLite))
}

func TestBind_StripsTrailingSemicolon(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT id FROM acme__users;  ", nil, Postgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM acme__users", bound.Text)
}

func TestBind_BoolPerDialect(t *testing.T) {
	t.Parallel()

	bound, err := Bind("SELECT * FROM acme__t WHERE active = $1", []any{true}, Postgres)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, bound.NativeArgs(Postgres))
	assert.Equal(t, []any{int64(1)}, bound.NativeArgs(SQLite))
}

func TestBind_TimeBecomesRFC3339(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	bound, err := Bind("SELECT * FROM acme__t WHERE created_at > $1", []any{ts}, Postgres)
	require.NoError(t, err)
	assert.Equal(t, []any{"2026-03-14T09:26:53Z"}, bound.NativeArgs(Postgres))
}
