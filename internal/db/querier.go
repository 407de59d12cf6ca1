package db

import (
	"context"
	"database/sql"
)

// Querier is the subset of database/sql execution methods shared by
// *sql.Conn, *sql.Tx and *sql.DB. Repositories take a Querier instead of
// holding a *sql.DB so every query runs on the tenant-bound connection or
// transaction the caller scoped for it and never reaches around the
// binding through the shared pool.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ Querier = (*sql.Conn)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*sql.DB)(nil)
)
