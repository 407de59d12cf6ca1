package appointment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/google/uuid"
)

// Repository persists appointments. It is stateless and runs every query
// on the Querier it is handed, so row isolation follows the session the
// caller bound.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// date is cast to text so it scans as YYYY-MM-DD without timezone games.
const appointmentColumns = `id, tenant_id, doctor_id, COALESCE(office_id::text, ''), patient_id,
	patient_mobile, patient_first_name, date::text, start_minute, duration_minutes,
	status, COALESCE(reason, ''), created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO clinicore.appointments (
			id, tenant_id, doctor_id, office_id, patient_id,
			patient_mobile, patient_first_name, date, start_minute,
			duration_minutes, status, reason, created_at
		) VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8::date, $9, $10, $11, NULLIF($12, ''), $13)`

	_, err := q.ExecContext(ctx, query,
		a.ID, a.TenantID, a.DoctorID, a.OfficeID, a.PatientID,
		a.PatientMobile, a.PatientFirstName, a.Date, a.StartMinute,
		a.DurationMinutes, string(a.Status), a.Reason, a.CreatedAt,
	)
	if err != nil {
		// The day scan ran before this insert; losing here means a
		// concurrent transaction committed the slot in between. The
		// winner's id is unknown at this point, the service fills it in.
		if db.IsExclusionViolation(err, "appointments_slot_excl") {
			return nil, &SlotConflictError{}
		}
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert appointment: %w", err)
	}
	return a, nil
}

func (r *Repository) GetByID(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM clinicore.appointments WHERE id = $1`
	appt, err := scanAppointment(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

// ListDayForDoctor returns every appointment a doctor has on the given
// date, ordered by start time. Conflict detection filters by status in
// memory so callers also see the day's full picture.
func (r *Repository) ListDayForDoctor(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM clinicore.appointments
		WHERE doctor_id = $1 AND date = $2::date
		ORDER BY start_minute ASC`

	rows, err := q.QueryContext(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, *appt)
	}
	return appointments, rows.Err()
}

// ListForPatient returns appointments addressed to the given identity
// pair, most recent day first.
func (r *Repository) ListForPatient(ctx context.Context, q db.Querier, mobile, firstName string) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM clinicore.appointments
		WHERE patient_mobile = $1 AND patient_first_name = $2
		ORDER BY date DESC, start_minute ASC`

	rows, err := q.QueryContext(ctx, query, mobile, firstName)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, *appt)
	}
	return appointments, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error) {
	query := `UPDATE clinicore.appointments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appointmentColumns

	appt, err := scanAppointment(q.QueryRowContext(ctx, query, id, string(status)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return appt, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		a         Appointment
		status    string
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.TenantID, &a.DoctorID, &a.OfficeID, &a.PatientID,
		&a.PatientMobile, &a.PatientFirstName, &a.Date, &a.StartMinute,
		&a.DurationMinutes, &status, &a.Reason, &a.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	if updatedAt.Valid {
		a.UpdatedAt = &updatedAt.Time
	}
	return &a, nil
}
