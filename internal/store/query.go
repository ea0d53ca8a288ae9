package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Result is the tabular output of one query. Rows are in database order and
// every row has len(Columns) values.
type Result struct {
	Columns []string
	Rows    [][]any

	// Truncated is set when more than MaxRows rows were available.
	Truncated bool

	Elapsed time.Duration
}

// Empty reports whether the query returned no rows.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Query runs one SELECT and returns at most MaxRows rows. Database errors are
// logged with their SQLSTATE and returned wrapped.
func (s *Store) Query(ctx context.Context, sqlText string, args ...any) (Result, error) {
	start := time.Now()

	var res Result
	err := s.withReadOnlyTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		res, err = collect(rows, s.maxRows)
		return err
	})
	if err != nil {
		s.logPQError(err, sqlText)
		return Result{}, fmt.Errorf("store: query: %w", err)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// rowScanner is the subset of *sql.Rows that collect needs.
type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collect(rows rowScanner, maxRows int) (Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}

	res := Result{Columns: cols}
	for rows.Next() {
		if len(res.Rows) == maxRows {
			res.Truncated = true
			break
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

// normalize converts driver values into plain Go values. lib/pq returns
// NUMERIC and text as []byte, which would otherwise render as byte slices.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
