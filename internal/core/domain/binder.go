package domain

import (
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// BoundQuery is an accepted statement rewritten into an engine's native
// placeholder syntax, together with the coerced arguments in the order the
// native markers appear.
type BoundQuery struct {
	Text string
	Args []Value
}

// NativeArgs converts the bound arguments into driver-level values.
func (b *BoundQuery) NativeArgs(d Dialect) []any {
	out := make([]any, len(b.Args))
	for i, v := range b.Args {
		out[i] = v.Native(d)
	}
	return out
}

type occurrence struct {
	start, end int
	n          int
}

// Bind rewrites every $N occurrence in sql into dialect's native positional
// marker, resolving each occurrence independently against the 1-based args
// array. Occurrences may repeat or appear out of numeric order; substitution
// happens in textual order so the engine receives arguments in marker order.
// On any failure no partially rewritten text is produced.
func Bind(sql string, args []any, d Dialect) (*BoundQuery, error) {
	scan, err := pg_query.Scan(sql)
	if err != nil {
		return nil, &GatewayError{Kind: KindSyntax, Message: scrubParseError(err), Preview: Preview(sql)}
	}

	var occs []occurrence
	for _, tok := range scan.Tokens {
		if tok.Token != pg_query.Token_PARAM {
			continue
		}
		text := sql[tok.Start:tok.End]
		n, err := strconv.Atoi(strings.TrimPrefix(text, "$"))
		if err != nil || n < 1 {
			return nil, Errorf(KindParameter, "invalid placeholder %q", text)
		}
		if n > len(args) {
			return nil, Errorf(KindParameter,
				"placeholder $%d has no argument: only %d supplied", n, len(args))
		}
		occs = append(occs, occurrence{start: int(tok.Start), end: int(tok.End), n: n})
	}

	coerced := make([]Value, len(args))
	for i, raw := range args {
		v, err := Coerce(raw)
		if err != nil {
			if ge, ok := err.(*GatewayError); ok {
				ge.Message = "argument " + strconv.Itoa(i+1) + ": " + ge.Message
			}
			return nil, err
		}
		coerced[i] = v
	}

	var b strings.Builder
	bound := &BoundQuery{Args: make([]Value, 0, len(occs))}
	pos := 0
	for i, occ := range occs {
		b.WriteString(sql[pos:occ.start])
		b.WriteString(d.Placeholder(i + 1))
		bound.Args = append(bound.Args, coerced[occ.n-1])
		pos = occ.end
	}
	b.WriteString(sql[pos:])

	// A single trailing semicolon is legal input but would break executors
	// that wrap the text in a subquery.
	text := strings.TrimRight(b.String(), " \t\n\r")
	text = strings.TrimSuffix(text, ";")
	bound.Text = strings.TrimRight(text, " \t\n\r")

	return bound, nil
}
