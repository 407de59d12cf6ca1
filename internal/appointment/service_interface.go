package appointment

import "context"

// ServiceInterface is what the HTTP layer depends on.
type ServiceInterface interface {
	Book(ctx context.Context, tenantID string, req BookAppointmentRequest) (*Appointment, error)
	Reschedule(ctx context.Context, tenantID, id string, req BookAppointmentRequest) (*Appointment, error)
	UpdateStatus(ctx context.Context, tenantID, id string, to Status) (*Appointment, error)
	Get(ctx context.Context, tenantID, id string) (*Appointment, error)
	ListDay(ctx context.Context, tenantID, doctorID, date string) ([]Appointment, error)
	ListForPatient(ctx context.Context, tenantID, mobile, firstName string) ([]Appointment, error)
}

var _ ServiceInterface = (*Service)(nil)
