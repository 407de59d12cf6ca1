package doctor

import "context"

// ServiceInterface is what the HTTP layer depends on.
type ServiceInterface interface {
	Create(ctx context.Context, tenantID string, req CreateDoctorRequest) (*Doctor, error)
	Get(ctx context.Context, tenantID, id string) (*Doctor, error)
	List(ctx context.Context, tenantID string) ([]Doctor, error)
	AddOffice(ctx context.Context, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error)
}

var _ ServiceInterface = (*Service)(nil)
