// Package sqlguard decides whether a SQL string is safe to run against the
// hazard tables. It is pure: no database access, no side effects.
//
// A statement passes only if it is a single read-only SELECT over the
// allow-listed quoted tables, calls only allow-listed functions, and (when
// the row-limit policy is on) cannot return an unbounded number of rows.
// Text checks and parse-tree checks both run; either can reject.
package sqlguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/nyashahama/hazard-query-backend/internal/hazard"
)

var (
	ErrEmpty            = errors.New("sqlguard: empty statement")
	ErrParse            = errors.New("sqlguard: unparseable")
	ErrNotSelect        = errors.New("sqlguard: not a single plain SELECT")
	ErrForbiddenKeyword = errors.New("sqlguard: forbidden keyword")
	ErrLeadingToken     = errors.New("sqlguard: must start with SELECT or (")
	ErrTable            = errors.New("sqlguard: table not allowed")
	ErrNoTable          = errors.New("sqlguard: no table referenced")
	ErrFunction         = errors.New("sqlguard: function not allowed")
	ErrUnbounded        = errors.New("sqlguard: missing LIMIT")
)

// forbiddenKeywords are rejected anywhere in the uppercased text, including
// inside identifiers and literals.
var forbiddenKeywords = []string{"DELETE", "UPDATE", "INSERT", "DROP", "ALTER", "TRUNCATE"}

// aggregates are the functions that collapse a select to one row.
var aggregates = map[string]bool{
	"avg":   true,
	"count": true,
	"sum":   true,
	"min":   true,
	"max":   true,
}

// allowedFunctions extends aggregates with scalar helpers the prompts ask
// for.
var allowedFunctions = map[string]bool{
	"round":           true,
	"coalesce":        true,
	"nullif":          true,
	"abs":             true,
	"greatest":        true,
	"least":           true,
	"lower":           true,
	"upper":           true,
	"stddev":          true,
	"percentile_cont": true,
	"st_setsrid":      true,
	"st_makepoint":    true,
	"st_point":        true,
	"st_distance":     true,
	"st_x":            true,
	"st_y":            true,
	"st_centroid":     true,
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(\(|"[^"]*"|[^\s,;()]+)`)

// Validator holds the policy knobs. The zero value has the row-limit policy
// off; use New for the production default.
type Validator struct {
	RequireLimit bool
}

// New returns a Validator with the row-limit policy enabled.
func New() Validator {
	return Validator{RequireLimit: true}
}

// Validate reports whether sql may be executed. It never panics.
func (v Validator) Validate(sql string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return v.Check(sql) == nil
}

// Validate runs the default policy.
func Validate(sql string) bool {
	return New().Validate(sql)
}

// Check returns nil when sql passes, otherwise an error wrapping one of the
// package sentinels with the offending detail.
func (v Validator) Check(sql string) error {
	text := strings.TrimSpace(sql)
	if text == "" {
		return ErrEmpty
	}

	tree, err := parse(text)
	if err != nil {
		return err
	}

	upper := strings.ToUpper(text)
	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("%w: %s", ErrForbiddenKeyword, kw)
		}
	}

	if !startsWithSelect(upper) {
		return ErrLeadingToken
	}

	if err := checkTableTokens(text); err != nil {
		return err
	}

	if err := checkTree(tree); err != nil {
		return err
	}

	if v.RequireLimit && !bounded(tree) {
		return ErrUnbounded
	}
	return nil
}

func startsWithSelect(upper string) bool {
	if strings.HasPrefix(upper, "(") {
		return true
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return false
	}
	if len(upper) == len("SELECT") {
		return true
	}
	next := upper[len("SELECT")]
	return !(next == '_' || (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9'))
}

// checkTableTokens is the textual check: whatever follows FROM or JOIN must
// be a subquery parenthesis or exactly an allow-listed quoted table.
func checkTableTokens(text string) error {
	allowed := make(map[string]bool)
	for _, t := range hazard.QuotedTables() {
		allowed[t] = true
	}

	found := 0
	for _, m := range tableRefPattern.FindAllStringSubmatch(text, -1) {
		tok := m[1]
		if tok == "(" {
			continue
		}
		if !allowed[tok] {
			return fmt.Errorf("%w: %s", ErrTable, tok)
		}
		found++
	}
	if found == 0 {
		return ErrNoTable
	}
	return nil
}

// ─── PARSE TREE ──────────────────────────────────────────────────────────────

type node = map[string]any

// parse returns the single SelectStmt node, or an error when the text is not
// exactly one plain SELECT.
func parse(text string) (node, error) {
	out, err := pg_query.ParseToJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var result struct {
		Stmts []struct {
			Stmt node `json:"stmt"`
		} `json:"stmts"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(result.Stmts) != 1 {
		return nil, fmt.Errorf("%w: %d statements", ErrNotSelect, len(result.Stmts))
	}

	sel, ok := result.Stmts[0].Stmt["SelectStmt"].(node)
	if !ok {
		return nil, ErrNotSelect
	}
	if _, into := sel["intoClause"]; into {
		return nil, fmt.Errorf("%w: SELECT INTO", ErrNotSelect)
	}
	return sel, nil
}

// checkTree walks every node: relations must be allow-listed tables without
// schema qualification, functions must be allow-listed, and no locking
// clause may appear at any depth.
func checkTree(root node) error {
	return walk(root, func(key string, v any) error {
		n, _ := v.(node)
		switch key {
		case "lockingClause":
			return fmt.Errorf("%w: locking clause", ErrNotSelect)
		case "intoClause":
			return fmt.Errorf("%w: SELECT INTO", ErrNotSelect)
		case "RangeVar":
			name, _ := n["relname"].(string)
			if schema, _ := n["schemaname"].(string); schema != "" {
				return fmt.Errorf("%w: %s.%s", ErrTable, schema, name)
			}
			if _, ok := hazard.FromTable(name); !ok {
				return fmt.Errorf("%w: %s", ErrTable, name)
			}
		case "FuncCall":
			name, err := funcName(n)
			if err != nil {
				return err
			}
			if !aggregates[name] && !allowedFunctions[name] {
				return fmt.Errorf("%w: %s", ErrFunction, name)
			}
		}
		return nil
	})
}

// walk calls visit for every field in the tree, keyed by the field name,
// depth first.
func walk(v any, visit func(key string, v any) error) error {
	switch t := v.(type) {
	case node:
		for k, child := range t {
			if err := visit(k, child); err != nil {
				return err
			}
			if err := walk(child, visit); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := walk(child, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// funcName returns the lowercased unqualified function name. pg_catalog
// qualification is accepted; any other schema is rejected. Keyword forms
// such as EXTRACT(YEAR FROM x) never reach here: checkTableTokens rejects
// their FROM first.
func funcName(fc node) (string, error) {
	parts, _ := fc["funcname"].([]any)
	var names []string
	for _, p := range parts {
		pn, _ := p.(node)
		s, _ := pn["String"].(node)
		if sval, ok := s["sval"].(string); ok {
			names = append(names, sval)
		} else if str, ok := s["str"].(string); ok {
			names = append(names, str)
		}
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("%w: unnamed", ErrFunction)
	case 1:
		return strings.ToLower(names[0]), nil
	case 2:
		if names[0] == "pg_catalog" {
			return strings.ToLower(names[1]), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFunction, strings.Join(names, "."))
}

// ─── ROW LIMIT ───────────────────────────────────────────────────────────────

// bounded reports whether the statement's row count is capped: a top-level
// LIMIT, or every leaf of a set operation either limited or aggregate-only.
func bounded(sel node) bool {
	if hasLimit(sel) {
		return true
	}
	larg, lok := sel["larg"].(node)
	rarg, rok := sel["rarg"].(node)
	if lok && rok {
		return bounded(larg) && bounded(rarg)
	}
	return aggregateOnly(sel)
}

func hasLimit(sel node) bool {
	lc, ok := sel["limitCount"].(node)
	if !ok {
		return false
	}
	// LIMIT ALL parses as a null constant.
	if c, ok := lc["A_Const"].(node); ok {
		if isNull, _ := c["isnull"].(bool); isNull {
			return false
		}
	}
	return true
}

// aggregateOnly reports whether a plain select returns a single row: no
// GROUP BY, at least one aggregate in the target list, and no column
// referenced outside an aggregate. Scalar subqueries are ignored.
func aggregateOnly(sel node) bool {
	if _, grouped := sel["groupClause"]; grouped {
		return false
	}
	targets, _ := sel["targetList"].([]any)
	if len(targets) == 0 {
		return false
	}

	var hasAgg, bare bool
	for _, t := range targets {
		tn, _ := t.(node)
		rt, _ := tn["ResTarget"].(node)
		a, b := classify(rt["val"])
		hasAgg = hasAgg || a
		bare = bare || b
	}
	return hasAgg && !bare
}

func classify(v any) (hasAgg, bare bool) {
	switch t := v.(type) {
	case node:
		if sub, ok := t["SubLink"]; ok && sub != nil {
			return false, false
		}
		if _, ok := t["ColumnRef"]; ok {
			return false, true
		}
		if fc, ok := t["FuncCall"].(node); ok {
			if name, err := funcName(fc); err == nil && aggregates[name] {
				if _, windowed := fc["over"]; !windowed {
					return true, false
				}
			}
		}
		for _, child := range t {
			a, b := classify(child)
			hasAgg = hasAgg || a
			bare = bare || b
		}
	case []any:
		for _, child := range t {
			a, b := classify(child)
			hasAgg = hasAgg || a
			bare = bare || b
		}
	}
	return hasAgg, bare
}
