package patient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/google/uuid"
)

// Repository issues patient queries against a tenant-bound Querier. The
// row-isolation policies scope every statement to the bound tenant, so the
// queries here carry no tenant_id predicate of their own; an unbound
// connection simply sees zero rows.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// date_of_birth is cast to text so it scans as YYYY-MM-DD without timezone games.
const patientColumns = `id, tenant_id, mobile_number, first_name, last_name, date_of_birth::text, gender, relationship, primary_contact_mobile, is_active, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, q db.Querier, tenantID string, req RegisterPatientRequest) (*Patient, error) {
	patientID := uuid.New()
	createdAt := time.Now()

	query := `
		INSERT INTO clinicore.patients
		(id, tenant_id, mobile_number, first_name, last_name, date_of_birth, gender, relationship, primary_contact_mobile, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::date, $7, $8, $9, true, $10)
		RETURNING ` + patientColumns

	row := q.QueryRowContext(ctx, query,
		patientID,
		tenantID,
		req.MobileNumber,
		req.FirstName,
		req.LastName,
		req.DateOfBirth,
		req.Gender,
		req.Relationship,
		req.PrimaryContactMobile,
		createdAt,
	)

	p, err := scanPatient(row)
	if err != nil {
		if db.IsUniqueViolation(err, "patients_identity_active_uniq") {
			return nil, ErrDuplicateIdentity
		}
		if db.IsUniqueViolation(err, "patients_family_self_uniq") {
			return nil, ErrPrimaryMemberExists
		}
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}
	return p, nil
}

// LockFamily takes a transaction-scoped advisory lock on the family group,
// serializing the member-count and primary checks across concurrent
// registrations. The lock releases at commit or rollback.
func (r *Repository) LockFamily(ctx context.Context, q db.Querier, tenantID, mobile string) error {
	_, err := q.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		tenantID, mobile,
	)
	if err != nil {
		return fmt.Errorf("failed to lock family group: %w", err)
	}
	return nil
}

// GetByIdentity looks a patient up by the composite natural key. Only
// active rows carry the identity; deactivated rows have released it.
func (r *Repository) GetByIdentity(ctx context.Context, q db.Querier, mobile, firstName string) (*Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM clinicore.patients
		WHERE mobile_number = $1 AND first_name = $2 AND is_active
	`
	p, err := scanPatient(q.QueryRowContext(ctx, query, mobile, firstName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query patient by identity: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, q db.Querier, id string) (*Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM clinicore.patients
		WHERE id = $1
	`
	p, err := scanPatient(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}
	return p, nil
}

// ListFamily returns the active members sharing a mobile number, the self
// row first and the rest ordered by first name. Family membership is a
// derived grouping over the mobile number, not a stored hierarchy.
func (r *Repository) ListFamily(ctx context.Context, q db.Querier, mobile string) ([]Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM clinicore.patients
		WHERE mobile_number = $1 AND is_active
		ORDER BY (relationship = 'self') DESC, first_name ASC
	`
	rows, err := q.QueryContext(ctx, query, mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to query family: %w", err)
	}
	defer rows.Close()

	var family []Patient
	for rows.Next() {
		p, err := scanPatientRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		family = append(family, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating family: %w", err)
	}
	return family, nil
}

// CountActiveFamily returns the number of active rows for a mobile number.
func (r *Repository) CountActiveFamily(ctx context.Context, q db.Querier, mobile string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clinicore.patients WHERE mobile_number = $1 AND is_active`,
		mobile,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count family members: %w", err)
	}
	return count, nil
}

// HasActiveSelf reports whether the family already has its primary member.
func (r *Repository) HasActiveSelf(ctx context.Context, q db.Querier, mobile string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clinicore.patients WHERE mobile_number = $1 AND relationship = 'self' AND is_active)`,
		mobile,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for primary member: %w", err)
	}
	return exists, nil
}

// SetActive toggles the soft-active flag and returns the updated row.
func (r *Repository) SetActive(ctx context.Context, q db.Querier, id string, active bool) (*Patient, error) {
	query := `
		UPDATE clinicore.patients
		SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + patientColumns

	p, err := scanPatient(q.QueryRowContext(ctx, query, id, active, time.Now()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if db.IsUniqueViolation(err, "patients_identity_active_uniq") {
			return nil, ErrDuplicateIdentity
		}
		if db.IsUniqueViolation(err, "patients_family_self_uniq") {
			return nil, ErrPrimaryMemberExists
		}
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to update patient active flag: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row *sql.Row) (*Patient, error) {
	return scanPatientRow(row)
}

func scanPatientRow(s rowScanner) (*Patient, error) {
	var p Patient
	var lastName, dob, gender, primaryMobile sql.NullString
	var updatedAt sql.NullTime

	err := s.Scan(
		&p.ID,
		&p.TenantID,
		&p.MobileNumber,
		&p.FirstName,
		&lastName,
		&dob,
		&gender,
		&p.Relationship,
		&primaryMobile,
		&p.IsActive,
		&p.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastName.Valid {
		p.LastName = lastName.String
	}
	if dob.Valid {
		p.DateOfBirth = &dob.String
	}
	if gender.Valid {
		p.Gender = gender.String
	}
	if primaryMobile.Valid {
		p.PrimaryContactMobile = primaryMobile.String
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}
