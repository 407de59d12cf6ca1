package tenant

import "errors"

var (
	ErrMissingName        = errors.New("clinic name is required")
	ErrMissingOwner       = errors.New("owner username and password are required")
	ErrInvalidPlan        = errors.New("unknown subscription plan")
	ErrDuplicateCode      = errors.New("a tenant with this code already exists")
	ErrDuplicateUsername  = errors.New("username is already taken")
	ErrNotFound           = errors.New("tenant not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTenantDeactivated  = errors.New("clinic is deactivated")
	ErrAlreadyInactive    = errors.New("tenant is already deactivated")
	ErrAlreadyActive      = errors.New("tenant is already active")
)
