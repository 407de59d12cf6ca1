package db

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeRLSViolation       = "42501"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally for one specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsExclusionViolation reports whether err is a Postgres exclusion-constraint
// violation, optionally for one specific constraint name.
func IsExclusionViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != codeExclusionViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsRLSViolation reports whether err is a row-level-security rejection
// (insufficient_privilege, raised when a write fails the WITH CHECK
// predicate). Callers treat this as an attempted cross-tenant write.
func IsRLSViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeRLSViolation
}
