package appointment

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/patient"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/google/uuid"
)

// RepositoryInterface defines the appointment persistence contract.
type RepositoryInterface interface {
	Insert(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, q db.Querier, id string) (*Appointment, error)
	ListDayForDoctor(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error)
	ListForPatient(ctx context.Context, q db.Querier, mobile, firstName string) ([]Appointment, error)
	UpdateStatus(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// PatientDirectory resolves patients by the composite natural key.
type PatientDirectory interface {
	GetByIdentity(ctx context.Context, q db.Querier, mobile, firstName string) (*patient.Patient, error)
}

// DoctorDirectory resolves doctor profiles for availability checks.
type DoctorDirectory interface {
	GetByID(ctx context.Context, q db.Querier, id string) (*doctor.Doctor, error)
}

// MetricsRecorder records appointment business metrics
type MetricsRecorder interface {
	RecordSlotConflict(ctx context.Context)
}

// Service books slots and drives the appointment lifecycle. Conflict
// checking and booking happen in one transaction so two requests for the
// same slot serialize on the doctor's day rows.
type Service struct {
	scoper    tenantctx.Scoper
	repo      RepositoryInterface
	patients  PatientDirectory
	doctors   DoctorDirectory
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
}

func NewService(scoper tenantctx.Scoper, repo RepositoryInterface, patients PatientDirectory, doctors DoctorDirectory, publisher messaging.PublisherInterface) *Service {
	return &Service{
		scoper:    scoper,
		repo:      repo,
		patients:  patients,
		doctors:   doctors,
		publisher: publisher,
	}
}

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// Book places an appointment. The patient is resolved by mobile number
// plus first name, the slot is checked against the doctor's weekly
// availability, and overlap with the doctor's blocking appointments that
// day is rejected with the colliding appointment's id.
func (s *Service) Book(ctx context.Context, tenantID string, req BookAppointmentRequest) (*Appointment, error) {
	day, startMinute, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var booked *Appointment
	err = s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		p, err := s.patients.GetByIdentity(ctx, tx, req.PatientMobile, req.PatientFirstName)
		if err != nil {
			if errors.Is(err, patient.ErrNotFound) {
				return ErrPatientNotFound
			}
			return err
		}

		doc, err := s.doctors.GetByID(ctx, tx, req.DoctorID)
		if err != nil {
			return err
		}
		if !doc.Availability.Covers(day.Weekday(), startMinute, req.DurationMinutes) {
			return ErrOutsideAvailability
		}

		existing, err := s.repo.ListDayForDoctor(ctx, tx, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		if conflict := FindConflict(existing, startMinute, req.DurationMinutes, ""); conflict != nil {
			s.recordConflict(ctx)
			return &SlotConflictError{ConflictingID: conflict.ID}
		}

		booked, err = s.repo.Insert(ctx, tx, &Appointment{
			TenantID:         tenantID,
			DoctorID:         req.DoctorID,
			OfficeID:         req.OfficeID,
			PatientID:        p.ID,
			PatientMobile:    p.MobileNumber,
			PatientFirstName: p.FirstName,
			Date:             req.Date,
			StartMinute:      startMinute,
			DurationMinutes:  req.DurationMinutes,
			Status:           StatusScheduled,
			Reason:           req.Reason,
		})
		return err
	})
	if err != nil {
		s.resolveConstraintConflict(ctx, tenantID, req, startMinute, "", err)
		return nil, err
	}

	s.publishBooked(ctx, tenantID, messaging.EventAppointmentBooked, booked)
	return booked, nil
}

// Reschedule moves an appointment to a new slot. The original row is kept
// and marked rescheduled; the new slot becomes a fresh appointment, so
// the history of the move survives.
func (s *Service) Reschedule(ctx context.Context, tenantID, id string, req BookAppointmentRequest) (*Appointment, error) {
	var (
		booked      *Appointment
		startMinute int
	)
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		old, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(old.Status, StatusRescheduled) {
			return &InvalidTransitionError{From: old.Status, To: StatusRescheduled}
		}

		// Slot fields default to the original appointment so callers can
		// reschedule by sending only what changes.
		if req.DoctorID == "" {
			req.DoctorID = old.DoctorID
		}
		if req.Date == "" {
			req.Date = old.Date
		}
		if req.DurationMinutes == 0 {
			req.DurationMinutes = old.DurationMinutes
		}
		if req.OfficeID == "" {
			req.OfficeID = old.OfficeID
		}
		req.PatientMobile = old.PatientMobile
		req.PatientFirstName = old.PatientFirstName

		day, sm, err := req.Validate()
		if err != nil {
			return err
		}
		startMinute = sm

		doc, err := s.doctors.GetByID(ctx, tx, req.DoctorID)
		if err != nil {
			return err
		}
		if !doc.Availability.Covers(day.Weekday(), startMinute, req.DurationMinutes) {
			return ErrOutsideAvailability
		}

		existing, err := s.repo.ListDayForDoctor(ctx, tx, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		// The appointment being moved must not collide with itself.
		if conflict := FindConflict(existing, startMinute, req.DurationMinutes, old.ID); conflict != nil {
			s.recordConflict(ctx)
			return &SlotConflictError{ConflictingID: conflict.ID}
		}

		if _, err := s.repo.UpdateStatus(ctx, tx, old.ID, StatusRescheduled); err != nil {
			return err
		}

		booked, err = s.repo.Insert(ctx, tx, &Appointment{
			TenantID:         tenantID,
			DoctorID:         req.DoctorID,
			OfficeID:         req.OfficeID,
			PatientID:        old.PatientID,
			PatientMobile:    old.PatientMobile,
			PatientFirstName: old.PatientFirstName,
			Date:             req.Date,
			StartMinute:      startMinute,
			DurationMinutes:  req.DurationMinutes,
			Status:           StatusScheduled,
			Reason:           req.Reason,
		})
		return err
	})
	if err != nil {
		s.resolveConstraintConflict(ctx, tenantID, req, startMinute, id, err)
		return nil, err
	}

	s.publishBooked(ctx, tenantID, messaging.EventAppointmentRescheduled, booked)
	return booked, nil
}

// UpdateStatus moves an appointment through the lifecycle state machine.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id string, to Status) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, &InvalidTransitionError{To: to}
	}

	var (
		updated *Appointment
		from    Status
	)
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !CanTransition(current.Status, to) {
			return &InvalidTransitionError{From: current.Status, To: to}
		}
		updated, err = s.repo.UpdateStatus(ctx, tx, id, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := messaging.AppointmentStatusEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventAppointmentStatus, uuid.New().String(), tenantID),
		Data: messaging.AppointmentStatusData{
			AppointmentID: updated.ID,
			FromStatus:    string(from),
			ToStatus:      string(to),
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventAppointmentStatus, event); err != nil {
		log.Printf("[ERROR] Failed to publish appointment.status_changed event: %v", err)
	}

	return updated, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Appointment, error) {
	var found *Appointment
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		found, err = s.repo.GetByID(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListDay returns a doctor's appointments for one date.
func (s *Service) ListDay(ctx context.Context, tenantID, doctorID, date string) ([]Appointment, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	var appointments []Appointment
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		appointments, err = s.repo.ListDayForDoctor(ctx, conn, doctorID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// ListForPatient returns the appointment history for an identity pair.
func (s *Service) ListForPatient(ctx context.Context, tenantID, mobile, firstName string) ([]Appointment, error) {
	if mobile == "" || firstName == "" {
		return nil, ErrMissingPatient
	}
	var appointments []Appointment
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		appointments, err = s.repo.ListForPatient(ctx, conn, mobile, firstName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *Service) recordConflict(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordSlotConflict(ctx)
	}
}

// resolveConstraintConflict handles the case where the exclusion constraint
// rejected an insert after the in-transaction scan saw a free slot: the
// winning booking committed concurrently, so a fresh read finds it. Filling
// the id is best effort, the slot error stands either way.
func (s *Service) resolveConstraintConflict(ctx context.Context, tenantID string, req BookAppointmentRequest, startMinute int, excludeID string, err error) {
	var conflict *SlotConflictError
	if !errors.As(err, &conflict) || conflict.ConflictingID != "" {
		return
	}
	s.recordConflict(ctx)

	lookupErr := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		day, err := s.repo.ListDayForDoctor(ctx, conn, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		if winner := FindConflict(day, startMinute, req.DurationMinutes, excludeID); winner != nil {
			conflict.ConflictingID = winner.ID
		}
		return nil
	})
	if lookupErr != nil {
		log.Printf("[WARN] Failed to resolve conflicting appointment: %v", lookupErr)
	}
}

func (s *Service) publishBooked(ctx context.Context, tenantID, eventType string, a *Appointment) {
	event := messaging.AppointmentBookedEvent{
		BaseEvent: messaging.NewBaseEvent(eventType, uuid.New().String(), tenantID),
		Data: messaging.AppointmentBookedData{
			AppointmentID: a.ID,
			DoctorID:      a.DoctorID,
			PatientID:     a.PatientID,
			Date:          a.Date,
			StartMinute:   a.StartMinute,
			Duration:      a.DurationMinutes,
		},
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		log.Printf("[ERROR] Failed to publish %s event: %v", eventType, err)
	}
}
