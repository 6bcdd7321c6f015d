// Package session defines the transactional handle passed to migration
// operations and ledger bookkeeping.
package session

import (
	"context"
	"database/sql"
)

// Session is the subset of *sql.Tx a migration operation may use. Everything
// executed through it commits or rolls back together with the ledger update
// of the same step.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner opens the per-step transaction. *sql.DB and *sql.Conn satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var (
	_ Session  = (*sql.Tx)(nil)
	_ Session  = (*sql.DB)(nil)
	_ Beginner = (*sql.DB)(nil)
	_ Beginner = (*sql.Conn)(nil)
)
