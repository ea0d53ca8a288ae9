package query

import (
	"regexp"
	"strings"
)

var (
	fencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	selectPattern = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// ExtractSQL pulls the first SQL-looking span out of model output. It
// prefers the contents of a code fence, starts at the first SELECT (backing
// up over any opening parentheses so UNION ALL of parenthesised blocks stays
// intact) and stops at the first semicolon. Returns false when there is no
// SELECT at all.
func ExtractSQL(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	loc := selectPattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	start := loc[0]
	for i := start - 1; i >= 0; i-- {
		c := text[i]
		if c == '(' {
			start = i
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		break
	}

	sql := text[start:]
	if i := strings.IndexByte(sql, ';'); i >= 0 {
		sql = sql[:i]
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", false
	}
	return sql, true
}
