package doctor

import "errors"

var (
	ErrMissingFirstName  = errors.New("first name is required")
	ErrMissingLastName   = errors.New("last name is required")
	ErrMissingLicense    = errors.New("license number is required")
	ErrMissingOfficeName = errors.New("office name is required")
	ErrInvalidSchedule   = errors.New("invalid availability schedule")
	ErrDuplicateLicense  = errors.New("a doctor with this license number already exists")
	ErrNotFound          = errors.New("doctor not found")
	ErrPlanLimitExceeded = errors.New("subscription plan doctor limit reached")
	ErrForbidden         = errors.New("forbidden - write rejected by tenant isolation")
)
