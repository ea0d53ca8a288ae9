// Package store executes validated, read-only queries against the hazard
// database.
//
// Every query runs inside its own READ ONLY transaction with a local
// statement timeout, and that transaction is always rolled back. Nothing in
// this package can write.
//
// Dependency rule: store imports nothing from internal/. Validation happens
// before a query ever reaches it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultMaxRows          = 200
	DefaultStatementTimeout = 10 * time.Second
)

// Options bounds what a single query may cost.
type Options struct {
	MaxRows          int
	StatementTimeout time.Duration
}

// Store holds the connection pool and the per-query limits.
type Store struct {
	pool    *sql.DB
	maxRows int
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via PingContext) before calling New.
func New(pool *sql.DB, opts Options, logger *slog.Logger) *Store {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = DefaultStatementTimeout
	}
	return &Store{
		pool:    pool,
		maxRows: opts.MaxRows,
		timeout: opts.StatementTimeout,
		logger:  logger,
	}
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// txFunc receives the read-only transaction. Its error is returned as-is.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// withReadOnlyTx begins a READ ONLY transaction, applies the statement
// timeout, runs fn and rolls back unconditionally (including on panic).
func (s *Store) withReadOnlyTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Rolled back even on success: this transaction never has anything to
	// commit.
	defer func() {
		_ = tx.Rollback()
	}()

	// SET cannot take bind parameters; the value is an integer we format.
	if _, err := tx.ExecContext(ctx, statementTimeoutSQL(s.timeout)); err != nil {
		return fmt.Errorf("store: set statement_timeout: %w", err)
	}

	return fn(ctx, tx)
}

func statementTimeoutSQL(d time.Duration) string {
	return fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds())
}

// logPQError records the SQLSTATE of a Postgres error. The text is for
// operators only and never reaches a client.
func (s *Store) logPQError(err error, sqlText string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		s.logger.Warn("store: postgres error",
			"code", string(pqErr.Code),
			"condition", pqErr.Code.Name(),
			"message", pqErr.Message,
			"sql", sqlText,
		)
		return
	}
	s.logger.Warn("store: query failed", "error", err, "sql", sqlText)
}
