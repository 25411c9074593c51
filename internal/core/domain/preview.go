package domain

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const previewRunes = 120

// Preview renders a short, literal-redacted form of a query for error
// messages and logs. String literals are replaced with '?' so sensitive
// values embedded in the text never leave the gateway.
func Preview(sql string) string {
	scan, err := pg_query.Scan(sql)
	if err != nil {
		// The text did not even lex; cut at the first quote so no literal
		// content survives, then truncate.
		if i := strings.IndexAny(sql, `'"`); i >= 0 {
			sql = sql[:i]
		}
		return truncate(normalizeKey(sql))
	}

	var b strings.Builder
	for _, tok := range scan.Tokens {
		switch tok.Token {
		case pg_query.Token_SQL_COMMENT, pg_query.Token_C_COMMENT:
			continue
		case pg_query.Token_SCONST, pg_query.Token_USCONST:
			b.WriteString("'?' ")
		default:
			b.WriteString(sql[tok.Start:tok.End])
			b.WriteByte(' ')
		}
	}
	return truncate(strings.TrimSpace(b.String()))
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRunes {
		return s
	}
	return string(runes[:previewRunes]) + "…"
}
