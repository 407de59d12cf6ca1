package tenantctx

import (
	"context"
	"database/sql"
)

// Scoper is the contract service layers depend on for tenant-scoped units
// of work. Satisfied by Binder; tests substitute a pass-through.
type Scoper interface {
	WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, conn *sql.Conn) error) error
	WithTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

var _ Scoper = (*Binder)(nil)
