package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Migrate applies the authoritative schema: tables, indexes and the
// row-level-security policies that enforce tenant isolation inside the
// database engine itself.
//
// Every tenant-owned table carries the same policy pair: a USING predicate
// for reads and a WITH CHECK predicate for writes, both comparing the row's
// tenant_id against the session variable app.current_tenant_id (see
// tenantctx). With no tenant bound the helper returns NULL and the
// predicates evaluate false, so an unbound session sees zero rows. Two
// tables are exempt:
//
//   - tenants: rows are created before any tenant exists to bind.
//   - users:   login must look a user up by credential before the tenant is
//     known; isolation there happens in the authorization step, not per row.
//
// The shared medicines catalog additionally allows rows with a NULL
// tenant_id to be read by every tenant.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w\nstatement: %s", err, stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Println("✓ Schema migration applied (row-level security enabled)")
	return nil
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS clinicore`,

	// btree_gist lets the appointment exclusion constraint mix equality
	// columns (uuid, date) with the range overlap operator.
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,

	// Session-variable accessor used by every row-isolation policy. Returns
	// NULL when no tenant is bound, which makes the policies reject all rows.
	`CREATE OR REPLACE FUNCTION clinicore.current_tenant_id() RETURNS uuid
	 AS $$ SELECT NULLIF(current_setting('app.current_tenant_id', true), '')::uuid $$
	 LANGUAGE sql STABLE`,

	`CREATE TABLE IF NOT EXISTS clinicore.tenants (
		id              uuid PRIMARY KEY,
		code            text NOT NULL UNIQUE,
		name            text NOT NULL,
		plan            text NOT NULL DEFAULT 'basic',
		max_doctors     integer NOT NULL DEFAULT 5,
		max_patients    integer NOT NULL DEFAULT 1000,
		max_storage_mb  integer NOT NULL DEFAULT 512,
		is_active       boolean NOT NULL DEFAULT true,
		created_at      timestamptz NOT NULL,
		updated_at      timestamptz
	)`,

	// Not row-isolated: credential lookup happens before a tenant is bound.
	`CREATE TABLE IF NOT EXISTS clinicore.users (
		id            uuid PRIMARY KEY,
		tenant_id     uuid NOT NULL REFERENCES clinicore.tenants(id),
		username      text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		role          text NOT NULL,
		created_at    timestamptz NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS clinicore.doctors (
		id              uuid PRIMARY KEY,
		tenant_id       uuid NOT NULL REFERENCES clinicore.tenants(id),
		user_id         uuid REFERENCES clinicore.users(id),
		first_name      text NOT NULL,
		last_name       text NOT NULL,
		license_number  text NOT NULL UNIQUE,
		specialty       text,
		availability    jsonb NOT NULL DEFAULT '{}',
		is_active       boolean NOT NULL DEFAULT true,
		created_at      timestamptz NOT NULL,
		updated_at      timestamptz
	)`,

	`CREATE TABLE IF NOT EXISTS clinicore.offices (
		id         uuid PRIMARY KEY,
		tenant_id  uuid NOT NULL REFERENCES clinicore.tenants(id),
		doctor_id  uuid NOT NULL REFERENCES clinicore.doctors(id),
		name       text NOT NULL,
		address    text,
		created_at timestamptz NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS clinicore.patients (
		id                     uuid PRIMARY KEY,
		tenant_id              uuid NOT NULL REFERENCES clinicore.tenants(id),
		mobile_number          text NOT NULL,
		first_name             text NOT NULL,
		last_name              text,
		date_of_birth          date,
		gender                 text,
		relationship           text NOT NULL DEFAULT 'self',
		primary_contact_mobile text,
		is_active              boolean NOT NULL DEFAULT true,
		created_at             timestamptz NOT NULL,
		updated_at             timestamptz
	)`,

	// Final authority for the composite natural key: only active rows count,
	// so deactivating a patient frees the (mobile, first name) identity.
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_identity_active_uniq
	 ON clinicore.patients (tenant_id, mobile_number, first_name)
	 WHERE is_active`,

	`CREATE INDEX IF NOT EXISTS patients_family_idx
	 ON clinicore.patients (tenant_id, mobile_number)
	 WHERE is_active`,

	// One active primary (self) member per family group, whatever the
	// first name. Two concurrent self registrations serialize here.
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_family_self_uniq
	 ON clinicore.patients (tenant_id, mobile_number)
	 WHERE relationship = 'self' AND is_active`,

	`CREATE TABLE IF NOT EXISTS clinicore.appointments (
		id                 uuid PRIMARY KEY,
		tenant_id          uuid NOT NULL REFERENCES clinicore.tenants(id),
		doctor_id          uuid NOT NULL REFERENCES clinicore.doctors(id),
		office_id          uuid REFERENCES clinicore.offices(id),
		patient_id         uuid NOT NULL REFERENCES clinicore.patients(id),
		patient_mobile     text NOT NULL,
		patient_first_name text NOT NULL,
		date               date NOT NULL,
		start_minute       integer NOT NULL,
		duration_minutes   integer NOT NULL,
		status             text NOT NULL DEFAULT 'scheduled',
		reason             text,
		created_at         timestamptz NOT NULL,
		updated_at         timestamptz
	)`,

	`CREATE INDEX IF NOT EXISTS appointments_doctor_day_idx
	 ON clinicore.appointments (tenant_id, doctor_id, date)`,

	// Overlap backstop. The in-transaction conflict scan runs at READ
	// COMMITTED and cannot see a concurrent uncommitted booking; two such
	// transactions serialize on this constraint and the loser gets an
	// exclusion violation. Only blocking statuses participate.
	`ALTER TABLE clinicore.appointments DROP CONSTRAINT IF EXISTS appointments_slot_excl`,
	`ALTER TABLE clinicore.appointments ADD CONSTRAINT appointments_slot_excl
	 EXCLUDE USING gist (
		tenant_id WITH =,
		doctor_id WITH =,
		date WITH =,
		int4range(start_minute, start_minute + duration_minutes) WITH &&
	 ) WHERE (status IN ('scheduled', 'confirmed', 'in_progress'))`,

	`CREATE TABLE IF NOT EXISTS clinicore.prescription_templates (
		id          uuid PRIMARY KEY,
		tenant_id   uuid NOT NULL REFERENCES clinicore.tenants(id),
		doctor_id   uuid REFERENCES clinicore.doctors(id),
		office_id   uuid REFERENCES clinicore.offices(id),
		name        text NOT NULL,
		header_text text,
		footer_text text,
		layout      jsonb NOT NULL DEFAULT '{}',
		is_default  boolean NOT NULL DEFAULT false,
		created_at  timestamptz NOT NULL,
		updated_at  timestamptz
	)`,

	// At most one default per (tenant, doctor, office) scope tuple. NULL
	// scope columns are folded to the zero uuid so they participate in the
	// uniqueness check.
	`CREATE UNIQUE INDEX IF NOT EXISTS templates_default_uniq
	 ON clinicore.prescription_templates (
		tenant_id,
		COALESCE(doctor_id, '00000000-0000-0000-0000-000000000000'::uuid),
		COALESCE(office_id, '00000000-0000-0000-0000-000000000000'::uuid)
	 )
	 WHERE is_default`,

	// Shared catalog: a NULL tenant_id marks a globally visible row.
	`CREATE TABLE IF NOT EXISTS clinicore.medicines (
		id         uuid PRIMARY KEY,
		tenant_id  uuid REFERENCES clinicore.tenants(id),
		name       text NOT NULL,
		strength   text,
		form       text,
		created_at timestamptz NOT NULL
	)`,

	// Row-isolation policies. FORCE makes the table owner subject to the
	// policies too, so there is no unbound back door for the service role.
	`ALTER TABLE clinicore.doctors ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.doctors FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_isolation ON clinicore.doctors`,
	`CREATE POLICY tenant_isolation ON clinicore.doctors
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,

	`ALTER TABLE clinicore.offices ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.offices FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_isolation ON clinicore.offices`,
	`CREATE POLICY tenant_isolation ON clinicore.offices
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,

	`ALTER TABLE clinicore.patients ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.patients FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_isolation ON clinicore.patients`,
	`CREATE POLICY tenant_isolation ON clinicore.patients
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,

	`ALTER TABLE clinicore.appointments ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.appointments FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_isolation ON clinicore.appointments`,
	`CREATE POLICY tenant_isolation ON clinicore.appointments
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,

	`ALTER TABLE clinicore.prescription_templates ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.prescription_templates FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_isolation ON clinicore.prescription_templates`,
	`CREATE POLICY tenant_isolation ON clinicore.prescription_templates
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,

	`ALTER TABLE clinicore.medicines ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clinicore.medicines FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS tenant_catalog_read ON clinicore.medicines`,
	`CREATE POLICY tenant_catalog_read ON clinicore.medicines FOR SELECT
	 USING (tenant_id IS NULL OR tenant_id = clinicore.current_tenant_id())`,
	`DROP POLICY IF EXISTS tenant_catalog_write ON clinicore.medicines`,
	`CREATE POLICY tenant_catalog_write ON clinicore.medicines
	 USING (tenant_id = clinicore.current_tenant_id())
	 WITH CHECK (tenant_id = clinicore.current_tenant_id())`,
}
