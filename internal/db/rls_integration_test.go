package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/clinicore/clinical-records-service/internal/testutil"
	"github.com/google/uuid"
)

func setupTwoTenants(t *testing.T, database *sql.DB, binder *tenantctx.Binder) (string, string) {
	t.Helper()
	ctx := context.Background()

	if err := db.Migrate(ctx, database); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	tenants := make([]string, 2)
	for i := range tenants {
		tenantID := uuid.New().String()
		tenants[i] = tenantID

		_, err := database.ExecContext(ctx, `
			INSERT INTO clinicore.tenants (id, code, name, plan, max_doctors, max_patients, max_storage_mb, is_active, created_at)
			VALUES ($1, $2, $3, 'basic', 5, 1000, 512, true, NOW())`,
			tenantID, "TST-"+tenantID[:8], "Test Clinic")
		if err != nil {
			t.Fatalf("failed to insert tenant: %v", err)
		}
		t.Cleanup(func() { testutil.CleanupTenantData(t, database, tenantID) })

		err = binder.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, `
				INSERT INTO clinicore.patients (id, tenant_id, mobile_number, first_name, relationship, is_active, created_at)
				VALUES ($1, $2, $3, 'Layla', 'self', true, NOW())`,
				uuid.New().String(), tenantID, "05000000"+tenantID[:2])
			return err
		})
		if err != nil {
			t.Fatalf("failed to insert patient for tenant %s: %v", tenantID, err)
		}
	}
	return tenants[0], tenants[1]
}

func countVisiblePatients(t *testing.T, binder *tenantctx.Binder, boundTenant, rowTenant string) int {
	t.Helper()

	var count int
	err := binder.WithTenant(context.Background(), boundTenant, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM clinicore.patients WHERE tenant_id = $1`, rowTenant).Scan(&count)
	})
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return count
}

// Row-isolation symmetry: a connection bound to one tenant sees zero rows
// of any other tenant, in both directions.
func TestRowIsolation_Symmetry(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	t1, t2 := setupTwoTenants(t, database, binder)

	if n := countVisiblePatients(t, binder, t1, t1); n != 1 {
		t.Errorf("tenant 1 should see its own row, got %d", n)
	}
	if n := countVisiblePatients(t, binder, t2, t2); n != 1 {
		t.Errorf("tenant 2 should see its own row, got %d", n)
	}
	if n := countVisiblePatients(t, binder, t1, t2); n != 0 {
		t.Errorf("tenant 1 sees %d of tenant 2's rows", n)
	}
	if n := countVisiblePatients(t, binder, t2, t1); n != 0 {
		t.Errorf("tenant 2 sees %d of tenant 1's rows", n)
	}
}

// No tenant bound means zero rows, even for otherwise unscoped queries.
func TestRowIsolation_UnboundSeesNothing(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	setupTwoTenants(t, database, binder)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var count int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinicore.patients`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("unbound session sees %d patient rows, want 0", count)
	}
}

// Cross-tenant writes are rejected by the write-check predicate.
func TestRowIsolation_CrossTenantWriteRejected(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	t1, t2 := setupTwoTenants(t, database, binder)

	err := binder.WithTenant(context.Background(), t1, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO clinicore.patients (id, tenant_id, mobile_number, first_name, relationship, is_active, created_at)
			VALUES ($1, $2, '0509999999', 'Omar', 'self', true, NOW())`,
			uuid.New().String(), t2)
		return err
	})
	if err == nil {
		t.Fatal("expected cross-tenant insert to be rejected")
	}
	if !db.IsRLSViolation(err) {
		t.Errorf("expected a row-security violation, got %v", err)
	}
}

// seedGlobalMedicine inserts a catalog row with no tenant. Global rows fail
// the write-check predicate for every bound tenant, so seeding lifts FORCE
// for the table owner the way an operator seeding the shared list would.
func seedGlobalMedicine(t *testing.T, database *sql.DB, name string) string {
	t.Helper()
	ctx := context.Background()

	if _, err := database.ExecContext(ctx, `ALTER TABLE clinicore.medicines NO FORCE ROW LEVEL SECURITY`); err != nil {
		t.Fatalf("failed to lift row security for seeding: %v", err)
	}
	id := uuid.New().String()
	_, insertErr := database.ExecContext(ctx, `
		INSERT INTO clinicore.medicines (id, tenant_id, name, strength, form, created_at)
		VALUES ($1, NULL, $2, '500mg', 'tablet', NOW())`, id, name)
	if _, err := database.ExecContext(ctx, `ALTER TABLE clinicore.medicines FORCE ROW LEVEL SECURITY`); err != nil {
		t.Fatalf("failed to restore row security: %v", err)
	}
	if insertErr != nil {
		t.Fatalf("failed to seed global medicine: %v", insertErr)
	}
	t.Cleanup(func() {
		database.ExecContext(ctx, `ALTER TABLE clinicore.medicines NO FORCE ROW LEVEL SECURITY`)
		database.ExecContext(ctx, `DELETE FROM clinicore.medicines WHERE id = $1`, id)
		database.ExecContext(ctx, `ALTER TABLE clinicore.medicines FORCE ROW LEVEL SECURITY`)
	})
	return id
}

// The medicines catalog mixes tenant-owned rows with globally shared ones.
// Every bound tenant reads the shared rows plus its own, never another
// tenant's, and cannot write rows outside its own tenant id.
func TestRowIsolation_SharedCatalog(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	t1, t2 := setupTwoTenants(t, database, binder)

	seedGlobalMedicine(t, database, "Paracetamol")

	err := binder.WithTenant(context.Background(), t1, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO clinicore.medicines (id, tenant_id, name, strength, form, created_at)
			VALUES ($1, $2, 'Clinic Special', '10mg', 'capsule', NOW())`,
			uuid.New().String(), t1)
		return err
	})
	if err != nil {
		t.Fatalf("failed to insert tenant medicine: %v", err)
	}

	countMedicines := func(boundTenant string) int {
		var count int
		err := binder.WithTenant(context.Background(), boundTenant, func(ctx context.Context, conn *sql.Conn) error {
			return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinicore.medicines`).Scan(&count)
		})
		if err != nil {
			t.Fatalf("medicine count failed: %v", err)
		}
		return count
	}

	if n := countMedicines(t1); n != 2 {
		t.Errorf("tenant 1 should see the shared row plus its own, got %d", n)
	}
	if n := countMedicines(t2); n != 1 {
		t.Errorf("tenant 2 should see only the shared row, got %d", n)
	}

	// A bound tenant cannot publish into the shared catalog.
	err = binder.WithTenant(context.Background(), t2, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO clinicore.medicines (id, tenant_id, name, strength, form, created_at)
			VALUES ($1, NULL, 'Rogue Global', '1mg', 'drop', NOW())`,
			uuid.New().String())
		return err
	})
	if err == nil {
		t.Fatal("expected null-tenant insert to be rejected")
	}
	if !db.IsRLSViolation(err) {
		t.Errorf("expected a row-security violation, got %v", err)
	}
}
