package doctor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/google/uuid"
)

// Repository issues doctor queries against a tenant-bound Querier; the
// row-isolation policies supply the tenant predicate.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q db.Querier, tenantID, userID string, req CreateDoctorRequest) (*Doctor, error) {
	doctorID := uuid.New()
	createdAt := time.Now()

	availability, err := json.Marshal(req.Availability)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal availability: %w", err)
	}

	query := `
		INSERT INTO clinicore.doctors
		(id, tenant_id, user_id, first_name, last_name, license_number, specialty, availability, is_active, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, true, $9)
		RETURNING id, tenant_id, COALESCE(user_id::text, ''), first_name, last_name, license_number, COALESCE(specialty, ''), availability, is_active, created_at
	`

	var d Doctor
	var rawAvailability []byte
	err = q.QueryRowContext(ctx, query,
		doctorID,
		tenantID,
		userID,
		req.FirstName,
		req.LastName,
		req.LicenseNumber,
		req.Specialty,
		availability,
		createdAt,
	).Scan(
		&d.ID,
		&d.TenantID,
		&d.UserID,
		&d.FirstName,
		&d.LastName,
		&d.LicenseNumber,
		&d.Specialty,
		&rawAvailability,
		&d.IsActive,
		&d.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "doctors_license_number_key") {
			return nil, ErrDuplicateLicense
		}
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert doctor: %w", err)
	}

	if err := json.Unmarshal(rawAvailability, &d.Availability); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	return &d, nil
}

func (r *Repository) GetByID(ctx context.Context, q db.Querier, id string) (*Doctor, error) {
	query := `
		SELECT id, tenant_id, COALESCE(user_id::text, ''), first_name, last_name, license_number, COALESCE(specialty, ''), availability, is_active, created_at, updated_at
		FROM clinicore.doctors
		WHERE id = $1
	`

	var d Doctor
	var rawAvailability []byte
	var updatedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.TenantID,
		&d.UserID,
		&d.FirstName,
		&d.LastName,
		&d.LicenseNumber,
		&d.Specialty,
		&rawAvailability,
		&d.IsActive,
		&d.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query doctor: %w", err)
	}

	if err := json.Unmarshal(rawAvailability, &d.Availability); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	if updatedAt.Valid {
		d.UpdatedAt = &updatedAt.Time
	}

	offices, err := r.ListOffices(ctx, q, d.ID)
	if err != nil {
		return nil, err
	}
	d.Offices = offices
	return &d, nil
}

func (r *Repository) List(ctx context.Context, q db.Querier) ([]Doctor, error) {
	query := `
		SELECT id, tenant_id, first_name, last_name, license_number, COALESCE(specialty, ''), availability, is_active, created_at
		FROM clinicore.doctors
		WHERE is_active
		ORDER BY last_name, first_name
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var d Doctor
		var rawAvailability []byte
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.FirstName, &d.LastName,
			&d.LicenseNumber, &d.Specialty, &rawAvailability, &d.IsActive, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		if err := json.Unmarshal(rawAvailability, &d.Availability); err != nil {
			return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating doctors: %w", err)
	}
	return doctors, nil
}

// CountActive returns the number of active doctors visible to the bound
// tenant, used to enforce the subscription plan limit.
func (r *Repository) CountActive(ctx context.Context, q db.Querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinicore.doctors WHERE is_active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return count, nil
}

func (r *Repository) InsertOffice(ctx context.Context, q db.Querier, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error) {
	officeID := uuid.New()
	createdAt := time.Now()

	query := `
		INSERT INTO clinicore.offices (id, tenant_id, doctor_id, name, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, doctor_id, name, COALESCE(address, ''), created_at
	`

	var o Office
	err := q.QueryRowContext(ctx, query, officeID, tenantID, doctorID, req.Name, req.Address, createdAt).Scan(
		&o.ID, &o.TenantID, &o.DoctorID, &o.Name, &o.Address, &o.CreatedAt,
	)
	if err != nil {
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert office: %w", err)
	}
	return &o, nil
}

func (r *Repository) ListOffices(ctx context.Context, q db.Querier, doctorID string) ([]Office, error) {
	query := `
		SELECT id, tenant_id, doctor_id, name, COALESCE(address, ''), created_at
		FROM clinicore.offices
		WHERE doctor_id = $1
		ORDER BY created_at
	`

	rows, err := q.QueryContext(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query offices: %w", err)
	}
	defer rows.Close()

	var offices []Office
	for rows.Next() {
		var o Office
		if err := rows.Scan(&o.ID, &o.TenantID, &o.DoctorID, &o.Name, &o.Address, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan office: %w", err)
		}
		offices = append(offices, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offices: %w", err)
	}
	return offices, nil
}

// MaxDoctorsForTenant reads the plan limit from the tenant catalog. The
// tenants table is not row-isolated, so this works on any connection.
func (r *Repository) MaxDoctorsForTenant(ctx context.Context, q db.Querier, tenantID string) (int, error) {
	var max int
	err := q.QueryRowContext(ctx, `SELECT max_doctors FROM clinicore.tenants WHERE id = $1`, tenantID).Scan(&max)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query tenant plan limit: %w", err)
	}
	return max, nil
}
