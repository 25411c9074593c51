package domain

import (
	"crypto/sha256"
	"fmt"
)

// MaskType is a column masking strategy applied to result rows before they
// leave the gateway.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid reports whether the MaskType is recognised. The zero value ""
// means "no mask" and is valid.
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// MaskSet maps column names to masking strategies for one tenant.
// Matching is by bare column name; aliased output columns are not resolved.
type MaskSet map[string]MaskType

// Apply masks the matching columns of every row in place.
func (m MaskSet) Apply(rows []map[string]any) {
	if len(m) == 0 {
		return
	}
	for _, row := range rows {
		for col, maskType := range m {
			if val, exists := row[col]; exists {
				row[col] = applyMask(val, maskType)
			}
		}
	}
}

// applyMask transforms a value according to the mask type. Masked values may
// change type (hash and partial always yield strings); MaskNull returns nil,
// indistinguishable from SQL NULL.
func applyMask(value any, maskType MaskType) any {
	if value == nil {
		return nil
	}

	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		h := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return fmt.Sprintf("%x", h)
	case MaskNull:
		return nil
	case MaskPartial:
		return maskPartial(value)
	default:
		return value
	}
}

// maskPartial reveals only the last 4 characters. Safe for multi-byte
// (unicode) strings.
func maskPartial(value any) string {
	runes := []rune(fmt.Sprintf("%v", value))
	if len(runes) <= 4 {
		return "***" + string(runes)
	}
	masked := make([]rune, len(runes))
	for i := range masked {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}
