package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/pagination"
	"github.com/google/uuid"
)

// Repository persists tenants and users. Both tables sit outside the
// row-isolation policies, so every query filters explicitly.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const tenantColumns = `id, code, name, plan, max_doctors, max_patients, max_storage_mb,
	is_active, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, q db.Querier, t *Tenant) error {
	query := `
		INSERT INTO clinicore.tenants (
			id, code, name, plan, max_doctors, max_patients,
			max_storage_mb, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := q.ExecContext(ctx, query,
		t.ID, t.Code, t.Name, t.Plan, t.MaxDoctors, t.MaxPatients,
		t.MaxStorageMB, t.IsActive, t.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "tenants_code_key") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, q db.Querier, id string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM clinicore.tenants WHERE id = $1`
	return r.one(ctx, q, query, id)
}

func (r *Repository) GetByCode(ctx context.Context, q db.Querier, code string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM clinicore.tenants WHERE code = $1`
	return r.one(ctx, q, query, code)
}

func (r *Repository) List(ctx context.Context, q db.Querier, params pagination.Params) ([]Tenant, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinicore.tenants`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	query := `SELECT ` + tenantColumns + ` FROM clinicore.tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, total, rows.Err()
}

func (r *Repository) SetActive(ctx context.Context, q db.Querier, id string, active bool) (*Tenant, error) {
	query := `UPDATE clinicore.tenants
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tenantColumns
	return r.one(ctx, q, query, id, active)
}

func (r *Repository) UpdatePlan(ctx context.Context, q db.Querier, id, plan string, limits PlanLimits) (*Tenant, error) {
	query := `UPDATE clinicore.tenants
		SET plan = $2, max_doctors = $3, max_patients = $4, max_storage_mb = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tenantColumns
	return r.one(ctx, q, query, id, plan, limits.MaxDoctors, limits.MaxPatients, limits.MaxStorageMB)
}

func (r *Repository) InsertUser(ctx context.Context, q db.Querier, u *User) error {
	query := `
		INSERT INTO clinicore.users (id, tenant_id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.ExecContext(ctx, query,
		u.ID, u.TenantID, u.Username, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByUsername is the credential lookup path. It runs without a bound
// tenant, which is why the users table carries no row-isolation policy.
func (r *Repository) GetUserByUsername(ctx context.Context, q db.Querier, username string) (*User, error) {
	query := `SELECT id, tenant_id, username, password_hash, role, created_at
		FROM clinicore.users WHERE username = $1`

	var u User
	err := q.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.TenantID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) one(ctx context.Context, q db.Querier, query string, args ...interface{}) (*Tenant, error) {
	t, err := scanTenant(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var (
		t         Tenant
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.Code, &t.Name, &t.Plan, &t.MaxDoctors, &t.MaxPatients,
		&t.MaxStorageMB, &t.IsActive, &t.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}
	return &t, nil
}

// NewTenantID pre-generates the surrogate id so registration can bind the
// tenant before its row is visible outside the transaction.
func NewTenantID() string {
	return uuid.New().String()
}
