package prescription

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/google/uuid"
)

// Repository persists prescription templates. Each resolution step is a
// separate method issuing its own query so the precedence order stays
// observable in traces and logs.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const templateColumns = `id, tenant_id, COALESCE(doctor_id::text, ''), COALESCE(office_id::text, ''),
	name, COALESCE(header_text, ''), COALESCE(footer_text, ''), layout, is_default, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, q db.Querier, tenantID string, req CreateTemplateRequest) (*Template, error) {
	layout := req.Layout
	if len(layout) == 0 {
		layout = json.RawMessage(`{}`)
	}

	t := &Template{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		DoctorID:   req.DoctorID,
		OfficeID:   req.OfficeID,
		Name:       req.Name,
		HeaderText: req.HeaderText,
		FooterText: req.FooterText,
		Layout:     layout,
		IsDefault:  req.IsDefault,
		CreatedAt:  time.Now().UTC(),
	}

	query := `
		INSERT INTO clinicore.prescription_templates (
			id, tenant_id, doctor_id, office_id, name,
			header_text, footer_text, layout, is_default, created_at
		) VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5,
			NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`

	_, err := q.ExecContext(ctx, query,
		t.ID, t.TenantID, t.DoctorID, t.OfficeID, t.Name,
		t.HeaderText, t.FooterText, []byte(t.Layout), t.IsDefault, t.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "templates_default_uniq") {
			return nil, ErrDefaultExists
		}
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}
	return t, nil
}

func (r *Repository) GetByID(ctx context.Context, q db.Querier, id string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates WHERE id = $1`
	return r.one(ctx, q, query, id)
}

func (r *Repository) List(ctx context.Context, q db.Querier) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// GetExact finds the template pinned to a (doctor, office) pair.
func (r *Repository) GetExact(ctx context.Context, q db.Querier, doctorID, officeID string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		WHERE doctor_id = $1 AND office_id = $2
		ORDER BY is_default DESC, created_at DESC
		LIMIT 1`
	return r.one(ctx, q, query, doctorID, officeID)
}

// GetDoctorDefault finds the doctor's default template with no office.
func (r *Repository) GetDoctorDefault(ctx context.Context, q db.Querier, doctorID string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		WHERE doctor_id = $1 AND office_id IS NULL AND is_default
		LIMIT 1`
	return r.one(ctx, q, query, doctorID)
}

// GetDoctorAny finds any office-less template belonging to the doctor.
func (r *Repository) GetDoctorAny(ctx context.Context, q db.Querier, doctorID string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		WHERE doctor_id = $1 AND office_id IS NULL
		ORDER BY created_at DESC
		LIMIT 1`
	return r.one(ctx, q, query, doctorID)
}

// GetTenantDefault finds the tenant-wide default template.
func (r *Repository) GetTenantDefault(ctx context.Context, q db.Querier) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		WHERE doctor_id IS NULL AND office_id IS NULL AND is_default
		LIMIT 1`
	return r.one(ctx, q, query)
}

// GetTenantAny finds any tenant-wide template.
func (r *Repository) GetTenantAny(ctx context.Context, q db.Querier) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM clinicore.prescription_templates
		WHERE doctor_id IS NULL AND office_id IS NULL
		ORDER BY created_at DESC
		LIMIT 1`
	return r.one(ctx, q, query)
}

func (r *Repository) one(ctx context.Context, q db.Querier, query string, args ...interface{}) (*Template, error) {
	t, err := scanTemplate(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	var (
		t         Template
		layout    []byte
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.TenantID, &t.DoctorID, &t.OfficeID,
		&t.Name, &t.HeaderText, &t.FooterText, &layout, &t.IsDefault,
		&t.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Layout = json.RawMessage(layout)
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}
	return &t, nil
}
