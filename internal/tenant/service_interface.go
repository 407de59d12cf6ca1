package tenant

import (
	"context"

	"github.com/clinicore/clinical-records-service/internal/pagination"
)

// ServiceInterface is what the HTTP layer depends on.
type ServiceInterface interface {
	RegisterClinic(ctx context.Context, req RegisterClinicRequest) (*RegisterResult, error)
	Authenticate(ctx context.Context, req LoginRequest) (*User, error)
	Get(ctx context.Context, id string) (*Tenant, error)
	GetByCode(ctx context.Context, code string) (*Tenant, error)
	List(ctx context.Context, params pagination.Params) ([]Tenant, pagination.Meta, error)
	ChangePlan(ctx context.Context, id, plan string) (*Tenant, error)
	Deactivate(ctx context.Context, id string) (*Tenant, error)
	Reactivate(ctx context.Context, id string) (*Tenant, error)
}

var _ ServiceInterface = (*Service)(nil)
