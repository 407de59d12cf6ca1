package patient

import "context"

// ServiceInterface defines the patient registry contract used by handlers.
type ServiceInterface interface {
	Register(ctx context.Context, tenantID string, req RegisterPatientRequest) (*Patient, error)
	Lookup(ctx context.Context, tenantID, mobile, firstName string) (*Patient, error)
	Get(ctx context.Context, tenantID, id string) (*Patient, error)
	ListFamily(ctx context.Context, tenantID, mobile string) ([]Patient, error)
	Deactivate(ctx context.Context, tenantID, id string) (*Patient, error)
	Reactivate(ctx context.Context, tenantID, id string) (*Patient, error)
}

var _ ServiceInterface = (*Service)(nil)
