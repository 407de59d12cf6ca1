package patient

import (
	"context"

	"github.com/clinicore/clinical-records-service/internal/db"
)

// RepositoryInterface defines the patient persistence contract.
// Every method runs against the tenant-bound Querier the caller provides.
type RepositoryInterface interface {
	Insert(ctx context.Context, q db.Querier, tenantID string, req RegisterPatientRequest) (*Patient, error)
	LockFamily(ctx context.Context, q db.Querier, tenantID, mobile string) error
	GetByIdentity(ctx context.Context, q db.Querier, mobile, firstName string) (*Patient, error)
	GetByID(ctx context.Context, q db.Querier, id string) (*Patient, error)
	ListFamily(ctx context.Context, q db.Querier, mobile string) ([]Patient, error)
	CountActiveFamily(ctx context.Context, q db.Querier, mobile string) (int, error)
	HasActiveSelf(ctx context.Context, q db.Querier, mobile string) (bool, error)
	SetActive(ctx context.Context, q db.Querier, id string, active bool) (*Patient, error)
}

var _ RepositoryInterface = (*Repository)(nil)
