package tenant

import (
	"time"

	"github.com/clinicore/clinical-records-service/internal/doctor"
)

// Subscription plans and their resource limits.
const (
	PlanBasic      = "basic"
	PlanStandard   = "standard"
	PlanEnterprise = "enterprise"
)

// PlanLimits caps a tenant's resources by subscription plan.
type PlanLimits struct {
	MaxDoctors   int
	MaxPatients  int
	MaxStorageMB int
}

var planLimits = map[string]PlanLimits{
	PlanBasic:      {MaxDoctors: 5, MaxPatients: 1000, MaxStorageMB: 512},
	PlanStandard:   {MaxDoctors: 20, MaxPatients: 10000, MaxStorageMB: 4096},
	PlanEnterprise: {MaxDoctors: 100, MaxPatients: 100000, MaxStorageMB: 32768},
}

// LimitsForPlan returns the resource limits of a plan.
func LimitsForPlan(plan string) (PlanLimits, bool) {
	l, ok := planLimits[plan]
	return l, ok
}

// Tenant is an isolated clinic organization. Rows are soft-deactivated,
// never deleted, so historical references stay resolvable.
type Tenant struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Plan         string     `json:"plan"`
	MaxDoctors   int        `json:"max_doctors"`
	MaxPatients  int        `json:"max_patients"`
	MaxStorageMB int        `json:"max_storage_mb"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// User is an account able to authenticate against this tenant. The table
// is deliberately reachable without a bound tenant so credential lookup
// can run before any tenant is known.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnerRequest carries the clinic owner's initial credentials.
type OwnerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterClinicRequest represents the clinic bootstrap request
type RegisterClinicRequest struct {
	Name   string                      `json:"name"`
	Plan   string                      `json:"plan"`
	Owner  OwnerRequest                `json:"owner"`
	Doctor *doctor.CreateDoctorRequest `json:"doctor,omitempty"`
}

func (r *RegisterClinicRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if r.Owner.Username == "" || r.Owner.Password == "" {
		return ErrMissingOwner
	}
	if r.Plan == "" {
		r.Plan = PlanBasic
	}
	if _, ok := planLimits[r.Plan]; !ok {
		return ErrInvalidPlan
	}
	if r.Doctor != nil {
		if err := r.Doctor.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ChangePlanRequest represents a subscription plan change
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// LoginRequest carries credentials for the pre-tenant lookup path.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return ErrInvalidCredentials
	}
	return nil
}
