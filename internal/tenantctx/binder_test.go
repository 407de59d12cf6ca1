package tenantctx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestWithTenant_InvalidTenantID(t *testing.T) {
	binder := NewBinder(nil)

	for _, tenantID := range []string{"", "not-a-uuid", "1234", "7f2c3a10-1b7e-4c8a"} {
		err := binder.WithTenant(context.Background(), tenantID, func(ctx context.Context, conn *sql.Conn) error {
			t.Fatal("callback must not run for an invalid tenant id")
			return nil
		})
		if !errors.Is(err, ErrInvalidTenantContext) {
			t.Errorf("tenant %q: expected ErrInvalidTenantContext, got %v", tenantID, err)
		}
	}
}

func TestWithTenantTx_InvalidTenantID(t *testing.T) {
	binder := NewBinder(nil)

	err := binder.WithTenantTx(context.Background(), "not-a-uuid", func(ctx context.Context, tx *sql.Tx) error {
		t.Fatal("callback must not run for an invalid tenant id")
		return nil
	})
	if !errors.Is(err, ErrInvalidTenantContext) {
		t.Errorf("expected ErrInvalidTenantContext, got %v", err)
	}
}
