package patient

import "errors"

var (
	ErrMissingMobile        = errors.New("mobile number is required")
	ErrMissingFirstName     = errors.New("first name is required")
	ErrInvalidRelationship  = errors.New("invalid relationship")
	ErrDuplicateIdentity    = errors.New("a patient with this mobile number and first name already exists")
	ErrPrimaryMemberRequired = errors.New("family has no primary (self) member yet")
	ErrPrimaryMemberExists  = errors.New("family already has a primary (self) member")
	ErrFamilyLimitExceeded  = errors.New("family member limit reached")
	ErrNotFound             = errors.New("patient not found")
	ErrAlreadyInactive      = errors.New("patient is already deactivated")
	ErrAlreadyActive        = errors.New("patient is already active")
	ErrForbidden            = errors.New("forbidden - write rejected by tenant isolation")
)
