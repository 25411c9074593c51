package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	valid := []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull}
	for _, mt := range valid {
		assert.True(t, mt.Valid(), "expected %q to be valid", mt)
	}

	invalid := []MaskType{"encrypt", "REDACT", "mask", "sha256"}
	for _, mt := range invalid {
		assert.False(t, mt.Valid(), "expected %q to be invalid", mt)
	}
}

func TestApplyMask_Redact(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "***", applyMask("secret@email.com", MaskRedact))
	assert.Equal(t, "***", applyMask(12345, MaskRedact))
	assert.Equal(t, "***", applyMask("", MaskRedact))
	assert.Nil(t, applyMask(nil, MaskRedact))
}

func TestApplyMask_Hash(t *testing.T) {
	t.Parallel()
	result := applyMask("secret@email.com", MaskHash)
	s, ok := result.(string)
	assert.True(t, ok)
	assert.Len(t, s, 64, "hash should be 64 hex chars (full SHA256)")

	// Deterministic: same input -> same hash.
	assert.Equal(t, result, applyMask("secret@email.com", MaskHash))

	// Different inputs -> different hashes.
	assert.NotEqual(t, result, applyMask("other@email.com", MaskHash))
}

func TestApplyMask_Null(t *testing.T) {
	t.Parallel()
	assert.Nil(t, applyMask("anything", MaskNull))
	assert.Nil(t, applyMask(42, MaskNull))
}

func TestApplyMask_Partial(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "***************6789", applyMask("1234-5678-2345-6789", MaskPartial))
	assert.Equal(t, "***abc", applyMask("abc", MaskPartial))
	assert.Equal(t, "***1234", applyMask(1234, MaskPartial))

	// Multi-byte strings keep whole runes.
	masked := applyMask("日本語のテキスト", MaskPartial).(string)
	assert.True(t, strings.HasSuffix(masked, "テキスト"))
	assert.NotContains(t, masked[:len(masked)-len("テキスト")], "日")
}

func TestMaskSet_Apply(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"id": 1, "email": "ada@example.com", "card": "1234-5678-2345-6789", "note": "keep"},
		{"id": 2, "email": nil, "note": "keep too"},
	}

	MaskSet{
		"email": MaskRedact,
		"card":  MaskPartial,
		"ssn":   MaskNull, // absent column is a no-op
	}.Apply(rows)

	assert.Equal(t, "***", rows[0]["email"])
	assert.Equal(t, "***************6789", rows[0]["card"])
	assert.Equal(t, "keep", rows[0]["note"])
	assert.Nil(t, rows[1]["email"])
	assert.Equal(t, "keep too", rows[1]["note"])
	assert.NotContains(t, rows[1], "ssn")
}

func TestMaskSet_Empty(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{{"a": 1}}
	MaskSet(nil).Apply(rows)
	assert.Equal(t, 1, rows[0]["a"])
}
