package prescription

import "errors"

var (
	ErrMissingName       = errors.New("template name is required")
	ErrOfficeNeedsDoctor = errors.New("an office-scoped template requires a doctor")
	ErrDefaultExists     = errors.New("a default template already exists for this scope")
	ErrNotFound          = errors.New("template not found")
	ErrForbidden         = errors.New("forbidden - write rejected by tenant isolation")
)
