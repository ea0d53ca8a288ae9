// Package query builds candidate SQL: deterministic city and region blocks
// over the hazard tables, and extraction of SQL from model output.
//
// Everything user-derived (place names, coordinates, region patterns) is
// passed as a bound parameter. Only values from fixed catalogues (table
// names, hazard labels, scenario columns) are written into the SQL text.
package query

import (
	"fmt"
	"strings"
)

// Provenance records which path produced a candidate.
type Provenance string

const (
	FromCity     Provenance = "city"
	FromRegion   Provenance = "region"
	FromFreeForm Provenance = "free_form"
)

// Validity is the validation state of a candidate. Only Valid candidates may
// be executed.
type Validity int

const (
	Unvalidated Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unvalidated"
	}
}

// Candidate is one SQL statement proposed for execution.
type Candidate struct {
	SQL        string
	Args       []any
	Provenance Provenance
	Validity   Validity
}

// Executable reports whether the candidate passed validation.
func (c Candidate) Executable() bool {
	return c.Validity == Valid
}

// binder accumulates positional arguments and hands out $n placeholders.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// unionAll joins select blocks. A single block is returned as-is; several are
// each parenthesised so their own ORDER BY/LIMIT clauses stay local.
func unionAll(blocks []string) string {
	if len(blocks) == 1 {
		return blocks[0]
	}
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = "(" + b + ")"
	}
	return strings.Join(parts, "\nUNION ALL\n")
}
