// Package hazard defines the fixed hazard catalogue: the four risk tables the
// service may read, the keywords that select them, and the scenario/horizon
// grid their severity columns follow.
//
// Everything here is static. Other packages must go through this package to
// name a table so that no table reaches SQL text without being on the
// allow-list.
package hazard

import (
	"strings"
)

// Category is one of the four hazard types backed by a risk table.
type Category string

const (
	Cyclone  Category = "Cyclone"
	Flood    Category = "Flood"
	Heat     Category = "Heat"
	Wildfire Category = "Wildfire"
)

// all is the canonical ordering. Detection results and generated SQL follow it
// so output is deterministic for a given question.
var all = []Category{Cyclone, Flood, Heat, Wildfire}

var tables = map[Category]string{
	Cyclone:  "CycloneRisk",
	Flood:    "FloodRisk",
	Heat:     "HeatRisk",
	Wildfire: "WildfireRisk",
}

var keywords = map[Category][]string{
	Cyclone:  {"cyclone", "hurricane", "storm", "typhoon"},
	Flood:    {"flood", "inundation", "water"},
	Heat:     {"heat", "temperature", "heatwave", "hot"},
	Wildfire: {"wildfire", "fire", "burn"},
}

// All returns every category in canonical order. The slice is a copy.
func All() []Category {
	out := make([]Category, len(all))
	copy(out, all)
	return out
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	_, ok := tables[c]
	return ok
}

// Table returns the case-sensitive table name without quotes, e.g. FloodRisk.
func (c Category) Table() string {
	return tables[c]
}

// QuotedTable returns the table identifier exactly as it must appear in SQL,
// e.g. "FloodRisk" including the double quotes.
func (c Category) QuotedTable() string {
	return `"` + tables[c] + `"`
}

// Keywords returns the lowercase keywords that select this category.
func (c Category) Keywords() []string {
	out := make([]string, len(keywords[c]))
	copy(out, keywords[c])
	return out
}

// Label is the human-facing name used in result columns and headings.
func (c Category) Label() string {
	return string(c)
}

// QuotedTables returns the allow-list of quoted table identifiers.
func QuotedTables() []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		out = append(out, c.QuotedTable())
	}
	return out
}

// FromTable maps a bare table name (FloodRisk) back to its category. The match
// is case-sensitive: floodrisk is not a known table.
func FromTable(name string) (Category, bool) {
	for c, t := range tables {
		if t == name {
			return c, true
		}
	}
	return "", false
}

// Detect returns the categories whose keywords occur in question, using a
// case-insensitive substring match. It never returns an empty slice: when no
// keyword matches, every category is returned.
func Detect(question string) []Category {
	q := strings.ToLower(question)

	var matched []Category
	for _, c := range all {
		for _, kw := range keywords[c] {
			if strings.Contains(q, kw) {
				matched = append(matched, c)
				break
			}
		}
	}

	if len(matched) == 0 {
		return All()
	}
	return matched
}
