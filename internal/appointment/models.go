package appointment

import (
	"fmt"
	"time"

	"github.com/clinicore/clinical-records-service/internal/doctor"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// allowedTransitions is the full status state machine. Absent keys are
// terminal states.
var allowedTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// blockingStatuses are the states that keep a slot occupied for conflict
// detection. Cancelled, completed, no-show and rescheduled rows free it.
var blockingStatuses = map[Status]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
}

// Blocks reports whether an appointment in this status occupies its slot.
func (s Status) Blocks() bool {
	return blockingStatuses[s]
}

// Appointment is a booked slot. The patient is addressed both by surrogate
// id and by the mobile number plus first name pair captured at booking
// time, so the record stays resolvable after the patient is deactivated
// and re-registered under a new id.
type Appointment struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	DoctorID         string     `json:"doctor_id"`
	OfficeID         string     `json:"office_id,omitempty"`
	PatientID        string     `json:"patient_id"`
	PatientMobile    string     `json:"patient_mobile"`
	PatientFirstName string     `json:"patient_first_name"`
	Date             string     `json:"date"`
	StartMinute      int        `json:"start_minute"`
	DurationMinutes  int        `json:"duration_minutes"`
	Status           Status     `json:"status"`
	Reason           string     `json:"reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// EndMinute returns the exclusive end of the slot.
func (a *Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

// BookAppointmentRequest represents the request to book a slot
type BookAppointmentRequest struct {
	DoctorID         string `json:"doctor_id"`
	OfficeID         string `json:"office_id"`
	PatientMobile    string `json:"patient_mobile"`
	PatientFirstName string `json:"patient_first_name"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	DurationMinutes  int    `json:"duration_minutes"`
	Reason           string `json:"reason"`
}

// Validate checks the request fields and returns the parsed day and start
// minute on success.
func (r *BookAppointmentRequest) Validate() (day time.Time, startMinute int, err error) {
	if r.DoctorID == "" {
		return time.Time{}, 0, ErrMissingDoctor
	}
	if r.PatientMobile == "" || r.PatientFirstName == "" {
		return time.Time{}, 0, ErrMissingPatient
	}
	day, err = parseDate(r.Date)
	if err != nil {
		return time.Time{}, 0, err
	}
	startMinute, err = doctor.ParseClock(r.StartTime)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, r.StartTime)
	}
	if r.DurationMinutes <= 0 {
		return time.Time{}, 0, ErrInvalidDuration
	}
	return day, startMinute, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
