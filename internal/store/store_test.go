package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/hazard-query-backend/internal/observability"
)

// ─── UNIT ─────────────────────────────────────────────────────────────────────

type fakeRows struct {
	cols []string
	data [][]any
	pos  int
	err  error
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestCollect_NormalizesValues(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("SAST", 2*3600))
	rows := &fakeRows{
		cols: []string{"city", "risk_10yr", "cells", "loaded_at"},
		data: [][]any{
			{[]byte("Boston"), []byte("5.2500"), int64(20), at},
		},
	}

	res, err := collect(rows, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "risk_10yr", "cells", "loaded_at"}, res.Columns)
	assert.Equal(t, [][]any{{"Boston", "5.2500", int64(20), "2025-03-01T10:00:00Z"}}, res.Rows)
	assert.False(t, res.Truncated)
	assert.False(t, res.Empty())
}

func TestCollect_CapsRows(t *testing.T) {
	rows := &fakeRows{cols: []string{"n"}, data: [][]any{{1}, {2}, {3}, {4}}}

	res, err := collect(rows, 2)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Truncated)
}

func TestCollect_RowsError(t *testing.T) {
	rows := &fakeRows{cols: []string{"n"}, err: errors.New("conn reset")}

	_, err := collect(rows, 2)
	assert.ErrorContains(t, err, "conn reset")
}

func TestCollect_Empty(t *testing.T) {
	res, err := collect(&fakeRows{cols: []string{"n"}}, 5)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestStatementTimeoutSQL(t *testing.T) {
	assert.Equal(t, "SET LOCAL statement_timeout = 10000", statementTimeoutSQL(10*time.Second))
	assert.Equal(t, "SET LOCAL statement_timeout = 250", statementTimeoutSQL(250*time.Millisecond))
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, Options{}, observability.DiscardLogger())
	assert.Equal(t, DefaultMaxRows, s.maxRows)
	assert.Equal(t, DefaultStatementTimeout, s.timeout)
}

// ─── INTEGRATION ──────────────────────────────────────────────────────────────

// openTestDB returns a *sql.DB from DATABASE_URL. Skips if the env var is
// not set so the test suite still passes in CI without a Postgres instance.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration tests")
	}
	pool, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestQuery_Integration(t *testing.T) {
	s := New(openTestDB(t), Options{MaxRows: 3}, observability.DiscardLogger())

	res, err := s.Query(context.Background(),
		`SELECT $1::text AS city, g AS n, (g * 1.5)::numeric AS score FROM generate_series(1, 5) g`, "Boston")
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "n", "score"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Truncated)
	assert.Equal(t, "Boston", res.Rows[0][0])
	assert.Equal(t, int64(1), res.Rows[0][1])
	assert.Equal(t, "1.5", res.Rows[0][2])
}

func TestQuery_ReadOnly_Integration(t *testing.T) {
	s := New(openTestDB(t), Options{}, observability.DiscardLogger())

	_, err := s.Query(context.Background(), `CREATE TEMP TABLE scratch (a int)`)
	require.Error(t, err)

	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "read_only_sql_transaction", pqErr.Code.Name())
}

func TestQuery_StatementTimeout_Integration(t *testing.T) {
	s := New(openTestDB(t), Options{StatementTimeout: 100 * time.Millisecond}, observability.DiscardLogger())

	_, err := s.Query(context.Background(), `SELECT pg_sleep(2)`)
	require.Error(t, err)

	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "query_canceled", pqErr.Code.Name())
}

func TestPing_Integration(t *testing.T) {
	s := New(openTestDB(t), Options{}, observability.DiscardLogger())
	assert.NoError(t, s.Ping(context.Background()))
}
