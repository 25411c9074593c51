package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// DefaultNamespaceSeparator joins a tenant id to its table names, as in
// "acme__users".
const DefaultNamespaceSeparator = "__"

// forbiddenKeywords are rejected anywhere in the token stream, not only in
// statement-head position. The parse-level statement whitelist is the primary
// gate; this scan catches DDL and maintenance keywords smuggled into otherwise
// well-formed statements.
var forbiddenKeywords = map[string]struct{}{
	"create": {}, "drop": {}, "alter": {}, "truncate": {},
	"grant": {}, "revoke": {},
	"vacuum": {}, "analyze": {}, "analyse": {}, "reindex": {}, "cluster": {},
	"copy": {}, "call": {}, "do": {},
	"listen": {}, "notify": {}, "unlisten": {},
	"checkpoint": {}, "discard": {},
}

// forbiddenIdents never lex as keywords in this dialect, so they are matched
// as bare identifiers instead.
var forbiddenIdents = map[string]struct{}{
	"pragma": {}, "attach": {}, "detach": {},
}

var systemSchemas = map[string]struct{}{
	"pg_catalog":         {},
	"information_schema": {},
}

// Validator statically analyzes a single SQL statement for a tenant. It is
// stateless and safe for concurrent use.
type Validator struct {
	separator string
}

func NewValidator(separator string) *Validator {
	if separator == "" {
		separator = DefaultNamespaceSeparator
	}
	return &Validator{separator: separator}
}

// Validate lexes and parses raw SQL and decides whether the statement may be
// bound and executed on behalf of tenant. paramCount is the number of
// arguments the caller supplied; crossTenant permits tables outside the
// tenant's namespace prefix. The returned error, if any, is a *GatewayError.
func (v *Validator) Validate(sql, tenant string, paramCount int, crossTenant bool) (*ValidationResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, Errorf(KindSyntax, "empty query")
	}

	scan, err := pg_query.Scan(trimmed)
	if err != nil {
		return nil, &GatewayError{Kind: KindSyntax, Message: scrubParseError(err), Preview: Preview(trimmed)}
	}

	res := &ValidationResult{}
	if err := v.scanTokens(trimmed, scan, res); err != nil {
		return nil, withPreview(err, trimmed)
	}

	if res.MaxPlaceholder > paramCount {
		return nil, withPreview(Errorf(KindParameter,
			"query references $%d but only %d argument(s) were supplied",
			res.MaxPlaceholder, paramCount), trimmed)
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, &GatewayError{Kind: KindSyntax, Message: scrubParseError(err), Preview: Preview(trimmed)}
	}
	if err := classifyStatement(tree, res); err != nil {
		return nil, withPreview(err, trimmed)
	}

	if err := v.checkTables(trimmed, tenant, crossTenant, res); err != nil {
		return nil, withPreview(err, trimmed)
	}

	res.Normalized = normalizeKey(trimmed)
	if fp, err := pg_query.Fingerprint(trimmed); err == nil {
		res.Fingerprint = fp
	}

	return res, nil
}

// scanTokens runs the lexer pass: stacked-statement semicolons, forbidden
// keywords, $N placeholders, and advisory warnings for inline string literals
// in filter clauses. String and comment contents are skipped by the lexer
// itself, so none of these checks can be fooled by quoting.
func (v *Validator) scanTokens(sql string, scan *pg_query.ScanResult, res *ValidationResult) error {
	seen := map[int]struct{}{}
	inFilter := false
	lastMeaningful := -1 // index of the last token that is not a comment

	for i, tok := range scan.Tokens {
		if tok.Token == pg_query.Token_SQL_COMMENT || tok.Token == pg_query.Token_C_COMMENT {
			continue
		}
		lastMeaningful = i
	}

	for i, tok := range scan.Tokens {
		text := sql[tok.Start:tok.End]
		lower := strings.ToLower(text)

		switch tok.Token {
		case pg_query.Token_SQL_COMMENT, pg_query.Token_C_COMMENT:
			continue

		case pg_query.Token_ASCII_59: // ';'
			if i != lastMeaningful {
				return Errorf(KindForbidden, "stacked statements are not allowed")
			}

		case pg_query.Token_PARAM:
			n, err := strconv.Atoi(strings.TrimPrefix(text, "$"))
			if err != nil || n < 1 {
				return Errorf(KindParameter, "invalid placeholder %q: placeholders are numbered from $1", text)
			}
			if n > res.MaxPlaceholder {
				res.MaxPlaceholder = n
			}
			seen[n] = struct{}{}

		case pg_query.Token_SCONST, pg_query.Token_USCONST:
			if inFilter {
				res.Warnings = append(res.Warnings,
					"inline string literal in a filter clause; bind it as a $N parameter instead")
				if isSQLi, fingerprint := libinjection.IsSQLi(literalContent(text)); isSQLi {
					res.Warnings = append(res.Warnings, fmt.Sprintf(
						"inline literal matches SQL injection fingerprint %q", fingerprint))
				}
			}

		case pg_query.Token_IDENT:
			if _, bad := forbiddenIdents[lower]; bad {
				return Errorf(KindForbidden, "keyword %q is not allowed", strings.ToUpper(lower))
			}

		default:
			if tok.KeywordKind == pg_query.KeywordKind_NO_KEYWORD {
				break
			}
			if _, bad := forbiddenKeywords[lower]; bad {
				return Errorf(KindForbidden, "keyword %q is not allowed", strings.ToUpper(lower))
			}
			switch lower {
			case "where", "having", "on":
				inFilter = true
			}
		}
	}

	res.Placeholders = make([]int, 0, len(seen))
	for n := range seen {
		res.Placeholders = append(res.Placeholders, n)
	}
	sort.Ints(res.Placeholders)

	for n := 1; n <= res.MaxPlaceholder; n++ {
		if _, ok := seen[n]; !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("placeholder $%d is never used", n))
		}
	}

	return nil
}

// classifyStatement enforces the single-statement rule and the
// SELECT/INSERT/UPDATE/DELETE whitelist.
func classifyStatement(tree *pg_query.ParseResult, res *ValidationResult) error {
	stmts := tree.GetStmts()
	if len(stmts) == 0 || stmts[0].GetStmt() == nil {
		return Errorf(KindSyntax, "empty query")
	}
	if len(stmts) > 1 {
		return Errorf(KindForbidden, "stacked statements are not allowed")
	}

	switch node := stmts[0].GetStmt().GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		if node.SelectStmt.GetIntoClause() != nil {
			return Errorf(KindForbidden, "SELECT INTO creates a table and is not allowed")
		}
		res.Kind = StatementSelect
	case *pg_query.Node_InsertStmt:
		res.Kind = StatementInsert
	case *pg_query.Node_UpdateStmt:
		res.Kind = StatementUpdate
	case *pg_query.Node_DeleteStmt:
		res.Kind = StatementDelete
	default:
		return Errorf(KindForbidden, "only SELECT, INSERT, UPDATE and DELETE statements are allowed")
	}

	return nil
}

type tableRef struct {
	schema string
	name   string
}

type treeFacts struct {
	refs   []tableRef
	ctes   map[string]struct{}
	writes bool
}

// checkTables extracts every table reference in the statement (including
// subqueries and CTE bodies) and enforces the tenant namespace prefix and the
// system-table ban. It also records whether a data-modifying CTE hides under
// the top-level statement.
func (v *Validator) checkTables(sql, tenant string, crossTenant bool, res *ValidationResult) error {
	jsonTree, err := pg_query.ParseToJSON(sql)
	if err != nil {
		return &GatewayError{Kind: KindSyntax, Message: scrubParseError(err)}
	}

	var root any
	if err := json.Unmarshal([]byte(jsonTree), &root); err != nil {
		return Errorf(KindSyntax, "unreadable parse tree: %v", err)
	}

	facts := &treeFacts{ctes: map[string]struct{}{}}
	walkTree(root, facts)

	res.Writes = res.Kind.IsWrite() || facts.writes

	prefix := tenant + v.separator
	names := map[string]struct{}{}
	for _, ref := range facts.refs {
		if ref.schema == "" {
			if _, isCTE := facts.ctes[ref.name]; isCTE {
				continue
			}
		}
		if _, system := systemSchemas[ref.schema]; system ||
			strings.HasPrefix(ref.name, "pg_") || strings.HasPrefix(ref.name, "sqlite_") {
			return Errorf(KindNamespace, "system table %q may not be referenced", ref.name)
		}
		if !crossTenant && !strings.HasPrefix(ref.name, prefix) {
			return Errorf(KindNamespace, "table %q is outside tenant namespace %q", ref.name, prefix)
		}
		names[ref.name] = struct{}{}
	}

	res.Tables = make([]string, 0, len(names))
	for name := range names {
		res.Tables = append(res.Tables, name)
	}
	sort.Strings(res.Tables)

	return nil
}

// walkTree recurses through the parse tree JSON. Any object carrying a
// "relname" is a table reference (RangeVar, or the bare relation of
// INSERT/UPDATE/DELETE); an object with "ctename" and "ctequery" defines a
// CTE whose name is not a real table.
func walkTree(node any, facts *treeFacts) {
	switch n := node.(type) {
	case map[string]any:
		if rel, ok := n["relname"].(string); ok {
			schema, _ := n["schemaname"].(string)
			facts.refs = append(facts.refs, tableRef{schema: schema, name: rel})
		}
		if cte, ok := n["ctename"].(string); ok {
			if _, hasBody := n["ctequery"]; hasBody {
				facts.ctes[cte] = struct{}{}
			}
		}
		for key, child := range n {
			switch key {
			case "InsertStmt", "UpdateStmt", "DeleteStmt":
				facts.writes = true
			}
			walkTree(child, facts)
		}
	case []any:
		for _, child := range n {
			walkTree(child, facts)
		}
	}
}

// normalizeKey collapses whitespace and case-folds the statement into a
// stable logging/grouping key.
func normalizeKey(sql string) string {
	return strings.ToLower(strings.Join(strings.Fields(sql), " "))
}

// literalContent strips the outer quotes from an SCONST token.
func literalContent(token string) string {
	if len(token) >= 2 && token[0] == '\'' && token[len(token)-1] == '\'' {
		return strings.ReplaceAll(token[1:len(token)-1], "''", "'")
	}
	return token
}

// scrubParseError keeps the parser's one-line message but drops anything
// after a newline (cursor positions quote the raw query text).
func scrubParseError(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func withPreview(err error, sql string) error {
	if ge, ok := err.(*GatewayError); ok && ge.Preview == "" {
		ge.Preview = Preview(sql)
	}
	return err
}
