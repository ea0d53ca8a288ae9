package summary

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nyashahama/hazard-query-backend/internal/scoring"
)

// maxTableRows caps the rendered table. The model still sees every row.
const maxTableRows = 50

// RenderTable returns the result as a markdown table with a category column
// after each severity column. An empty result renders as "".
func RenderTable(columns []string, rows [][]any) string {
	if len(columns) == 0 || len(rows) == 0 {
		return ""
	}
	cols, annotated := scoring.Annotate(columns, rows)

	var sb strings.Builder
	sb.WriteString("|")
	for _, c := range cols {
		sb.WriteString(" " + escapeCell(c) + " |")
	}
	sb.WriteString("\n|")
	for range cols {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")

	for i, row := range annotated {
		if i == maxTableRows {
			fmt.Fprintf(&sb, "\n_%d more rows not shown._\n", len(annotated)-maxTableRows)
			break
		}
		sb.WriteString("|")
		for _, v := range row {
			sb.WriteString(" " + escapeCell(FormatValue(v)) + " |")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatValue renders one cell. Numbers (including numeric strings from
// NUMERIC columns) are shown with at most two decimals.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return formatFloat(f)
		}
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	if f, ok := scoring.ToFloat(v); ok {
		return formatFloat(f)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
