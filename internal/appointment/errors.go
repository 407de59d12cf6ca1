package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDoctor       = errors.New("doctor_id is required")
	ErrMissingPatient      = errors.New("patient mobile and first name are required")
	ErrInvalidDate         = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidStartTime    = errors.New("start_time must be in HH:MM format")
	ErrInvalidDuration     = errors.New("duration_minutes must be a positive number")
	ErrOutsideAvailability = errors.New("requested slot is outside the doctor's availability")
	ErrNotFound            = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("no active patient matches the given mobile and first name")
	ErrForbidden           = errors.New("forbidden - write rejected by tenant isolation")
)

// SlotConflictError reports an overlap with an existing appointment and
// carries the colliding appointment's id so callers can surface it.
type SlotConflictError struct {
	ConflictingID string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with appointment %s", e.ConflictingID)
}

// InvalidTransitionError reports a status change the state machine does
// not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %q to %q", e.From, e.To)
}
