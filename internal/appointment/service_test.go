package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/patient"
	"github.com/google/uuid"
)

const (
	testTenantID = "7f2c3a10-1b7e-4c8a-9f0d-2a6b5c4d3e2f"
	testDoctorID = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
	// A Monday.
	testDate = "2026-08-31"
)

func availableDoctor() *doctor.Doctor {
	return &doctor.Doctor{
		ID:       testDoctorID,
		TenantID: testTenantID,
		Availability: doctor.WeeklySchedule{
			"monday": {{Start: "09:00", End: "17:00"}},
		},
	}
}

func activePatient() *patient.Patient {
	return &patient.Patient{
		ID:           uuid.New().String(),
		TenantID:     testTenantID,
		MobileNumber: "0501234567",
		FirstName:    "Layla",
		IsActive:     true,
	}
}

func bookRequest() BookAppointmentRequest {
	return BookAppointmentRequest{
		DoctorID:         testDoctorID,
		PatientMobile:    "0501234567",
		PatientFirstName: "Layla",
		Date:             testDate,
		StartTime:        "09:00",
		DurationMinutes:  30,
	}
}

func newTestService(repo *mockRepository, patients *mockPatients, doctors *mockDoctors, pub *mockPublisher) *Service {
	if patients == nil {
		patients = &mockPatients{
			GetByIdentityFunc: func(ctx context.Context, q db.Querier, mobile, firstName string) (*patient.Patient, error) {
				return activePatient(), nil
			},
		}
	}
	if doctors == nil {
		doctors = &mockDoctors{
			GetByIDFunc: func(ctx context.Context, q db.Querier, id string) (*doctor.Doctor, error) {
				return availableDoctor(), nil
			},
		}
	}
	if pub == nil {
		pub = &mockPublisher{}
	}
	return NewService(passthroughScoper{}, repo, patients, doctors, pub)
}

func TestService_Book_Success(t *testing.T) {
	pub := &mockPublisher{}
	repo := &mockRepository{
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			return nil, nil
		},
		InsertFunc: func(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
			a.ID = uuid.New().String()
			return a, nil
		},
	}
	svc := newTestService(repo, nil, nil, pub)

	booked, err := svc.Book(context.Background(), testTenantID, bookRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booked.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", booked.Status)
	}
	if booked.StartMinute != 540 {
		t.Errorf("expected start minute 540, got %d", booked.StartMinute)
	}
	if booked.PatientMobile != "0501234567" || booked.PatientFirstName != "Layla" {
		t.Errorf("patient identity not captured on the appointment: %+v", booked)
	}

	events := pub.events()
	if len(events) != 1 || events[0].routingKey != messaging.EventAppointmentBooked {
		t.Errorf("expected one appointment.booked event, got %+v", events)
	}
}

func TestService_Book_SlotConflict(t *testing.T) {
	repo := &mockRepository{
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			return []Appointment{existingAt("taken", 540, 30, StatusConfirmed)}, nil
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	req := bookRequest()
	req.StartTime = "09:15"
	_, err := svc.Book(context.Background(), testTenantID, req)

	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if conflict.ConflictingID != "taken" {
		t.Errorf("expected conflicting id %q, got %q", "taken", conflict.ConflictingID)
	}
}

func TestService_Book_BackToBackAllowed(t *testing.T) {
	repo := &mockRepository{
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			return []Appointment{existingAt("taken", 540, 30, StatusScheduled)}, nil
		},
		InsertFunc: func(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
			a.ID = uuid.New().String()
			return a, nil
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	req := bookRequest()
	req.StartTime = "09:30"
	if _, err := svc.Book(context.Background(), testTenantID, req); err != nil {
		t.Fatalf("back-to-back booking should succeed, got %v", err)
	}
}

func TestService_Book_OutsideAvailability(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, nil, nil, nil)

	req := bookRequest()
	req.StartTime = "18:00"
	if _, err := svc.Book(context.Background(), testTenantID, req); !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability, got %v", err)
	}

	// Sunday has no availability at all.
	req = bookRequest()
	req.Date = "2026-08-30"
	if _, err := svc.Book(context.Background(), testTenantID, req); !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability for uncovered day, got %v", err)
	}
}

func TestService_Book_UnknownPatient(t *testing.T) {
	patients := &mockPatients{
		GetByIdentityFunc: func(ctx context.Context, q db.Querier, mobile, firstName string) (*patient.Patient, error) {
			return nil, patient.ErrNotFound
		},
	}
	svc := newTestService(&mockRepository{}, patients, nil, nil)

	if _, err := svc.Book(context.Background(), testTenantID, bookRequest()); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestService_Book_Validation(t *testing.T) {
	svc := newTestService(&mockRepository{}, nil, nil, nil)

	req := bookRequest()
	req.Date = "31-08-2026"
	if _, err := svc.Book(context.Background(), testTenantID, req); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}

	req = bookRequest()
	req.DurationMinutes = 0
	if _, err := svc.Book(context.Background(), testTenantID, req); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}

	req = bookRequest()
	req.PatientMobile = ""
	if _, err := svc.Book(context.Background(), testTenantID, req); !errors.Is(err, ErrMissingPatient) {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}
}

func TestService_Reschedule_Success(t *testing.T) {
	original := existingAt("orig", 540, 30, StatusScheduled)
	original.TenantID = testTenantID
	original.DoctorID = testDoctorID
	original.OfficeID = "office-1"
	original.PatientID = "p1"
	original.PatientMobile = "0501234567"
	original.PatientFirstName = "Layla"
	original.Date = testDate

	var statusUpdates []Status
	pub := &mockPublisher{}
	repo := &mockRepository{
		GetByIDFunc: func(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
			if id == "orig" {
				copy := original
				return &copy, nil
			}
			return nil, ErrNotFound
		},
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			return []Appointment{original}, nil
		},
		UpdateStatusFunc: func(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error) {
			statusUpdates = append(statusUpdates, status)
			updated := original
			updated.Status = status
			return &updated, nil
		},
		InsertFunc: func(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
			a.ID = "new"
			return a, nil
		},
	}
	svc := newTestService(repo, nil, nil, pub)

	req := BookAppointmentRequest{Date: testDate, StartTime: "10:00"}
	moved, err := svc.Reschedule(context.Background(), testTenantID, "orig", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.ID != "new" || moved.StartMinute != 600 {
		t.Errorf("unexpected rescheduled appointment: %+v", moved)
	}
	if moved.PatientID != "p1" || moved.PatientMobile != "0501234567" {
		t.Errorf("patient identity not carried to the new appointment: %+v", moved)
	}
	if moved.OfficeID != "office-1" {
		t.Errorf("office not carried to the new appointment: %+v", moved)
	}
	if len(statusUpdates) != 1 || statusUpdates[0] != StatusRescheduled {
		t.Errorf("expected original to be marked rescheduled, got %v", statusUpdates)
	}

	events := pub.events()
	if len(events) != 1 || events[0].routingKey != messaging.EventAppointmentRescheduled {
		t.Errorf("expected one appointment.rescheduled event, got %+v", events)
	}
}

func TestService_Reschedule_ConflictWithOther(t *testing.T) {
	original := existingAt("orig", 540, 30, StatusScheduled)
	original.DoctorID = testDoctorID
	original.PatientMobile = "0501234567"
	original.PatientFirstName = "Layla"
	original.Date = testDate
	other := existingAt("other", 600, 30, StatusConfirmed)

	repo := &mockRepository{
		GetByIDFunc: func(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
			copy := original
			return &copy, nil
		},
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			return []Appointment{original, other}, nil
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	req := BookAppointmentRequest{Date: testDate, StartTime: "10:00"}
	_, err := svc.Reschedule(context.Background(), testTenantID, "orig", req)

	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if conflict.ConflictingID != "other" {
		t.Errorf("expected conflict with %q, got %q", "other", conflict.ConflictingID)
	}
}

func TestService_Reschedule_CompletedRejected(t *testing.T) {
	repo := &mockRepository{
		GetByIDFunc: func(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
			done := existingAt("orig", 540, 30, StatusCompleted)
			return &done, nil
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	_, err := svc.Reschedule(context.Background(), testTenantID, "orig", BookAppointmentRequest{Date: testDate, StartTime: "10:00"})

	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	current := existingAt("a1", 540, 30, StatusScheduled)
	repo := &mockRepository{
		GetByIDFunc: func(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
			copy := current
			return &copy, nil
		},
		UpdateStatusFunc: func(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error) {
			updated := current
			updated.Status = status
			return &updated, nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestService(repo, nil, nil, pub)

	updated, err := svc.UpdateStatus(context.Background(), testTenantID, "a1", StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}

	events := pub.events()
	if len(events) != 1 || events[0].routingKey != messaging.EventAppointmentStatus {
		t.Fatalf("expected one status event, got %+v", events)
	}

	// scheduled cannot jump straight to completed.
	_, err = svc.UpdateStatus(context.Background(), testTenantID, "a1", StatusCompleted)
	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if transition.From != StatusScheduled || transition.To != StatusCompleted {
		t.Errorf("unexpected transition error: %+v", transition)
	}

	// Unknown status values are rejected before touching storage.
	if _, err := svc.UpdateStatus(context.Background(), testTenantID, "a1", Status("archived")); err == nil {
		t.Error("expected error for unknown status")
	}
}

// A concurrent booking can commit between the day scan and the insert; the
// storage constraint then rejects the insert and the service resolves which
// appointment won with a fresh read.
func TestService_Book_ConstraintConflictResolvesWinner(t *testing.T) {
	winner := existingAt("winner", 540, 30, StatusScheduled)
	winner.DoctorID = testDoctorID
	winner.Date = testDate

	scans := 0
	repo := &mockRepository{
		ListDayForDoctorFunc: func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
			scans++
			if scans == 1 {
				// The winner is not yet committed when the scan runs.
				return nil, nil
			}
			return []Appointment{winner}, nil
		},
		InsertFunc: func(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
			return nil, &SlotConflictError{}
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	_, err := svc.Book(context.Background(), testTenantID, bookRequest())
	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if conflict.ConflictingID != "winner" {
		t.Errorf("expected the committed booking's id, got %q", conflict.ConflictingID)
	}
	if scans != 2 {
		t.Errorf("expected a resolution read after the rejected insert, got %d scans", scans)
	}
}
