package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// rowsToMaps converts pgx.Rows into a slice of maps keyed by column name,
// keeping at most maxRows rows. The second return value reports whether the
// result was cut short.
func rowsToMaps(rows pgx.Rows, maxRows int) ([]map[string]any, bool, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []map[string]any
	truncated := false

	for rows.Next() {
		if len(result) >= maxRows {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, false, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating rows: %w", err)
	}
	return result, truncated, nil
}
