package prescription

import "context"

// ServiceInterface is what the HTTP layer depends on.
type ServiceInterface interface {
	Create(ctx context.Context, tenantID string, req CreateTemplateRequest) (*Template, error)
	Get(ctx context.Context, tenantID, id string) (*Template, error)
	List(ctx context.Context, tenantID string) ([]Template, error)
	Resolve(ctx context.Context, tenantID, doctorID, officeID string) (*Template, error)
}

var _ ServiceInterface = (*Service)(nil)
