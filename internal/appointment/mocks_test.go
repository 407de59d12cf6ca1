package appointment

import (
	"context"
	"database/sql"
	"sync"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/patient"
)

type passthroughScoper struct{}

func (passthroughScoper) WithTenant(ctx context.Context, tenantID string, fn func(context.Context, *sql.Conn) error) error {
	return fn(ctx, nil)
}

func (passthroughScoper) WithTenantTx(ctx context.Context, tenantID string, fn func(context.Context, *sql.Tx) error) error {
	return fn(ctx, nil)
}

type mockRepository struct {
	InsertFunc           func(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error)
	GetByIDFunc          func(ctx context.Context, q db.Querier, id string) (*Appointment, error)
	ListDayForDoctorFunc func(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error)
	ListForPatientFunc   func(ctx context.Context, q db.Querier, mobile, firstName string) ([]Appointment, error)
	UpdateStatusFunc     func(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error)
}

func (m *mockRepository) Insert(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
	return m.InsertFunc(ctx, q, a)
}

func (m *mockRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Appointment, error) {
	return m.GetByIDFunc(ctx, q, id)
}

func (m *mockRepository) ListDayForDoctor(ctx context.Context, q db.Querier, doctorID, date string) ([]Appointment, error) {
	return m.ListDayForDoctorFunc(ctx, q, doctorID, date)
}

func (m *mockRepository) ListForPatient(ctx context.Context, q db.Querier, mobile, firstName string) ([]Appointment, error) {
	return m.ListForPatientFunc(ctx, q, mobile, firstName)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, q db.Querier, id string, status Status) (*Appointment, error) {
	return m.UpdateStatusFunc(ctx, q, id, status)
}

type mockPatients struct {
	GetByIdentityFunc func(ctx context.Context, q db.Querier, mobile, firstName string) (*patient.Patient, error)
}

func (m *mockPatients) GetByIdentity(ctx context.Context, q db.Querier, mobile, firstName string) (*patient.Patient, error) {
	return m.GetByIdentityFunc(ctx, q, mobile, firstName)
}

type mockDoctors struct {
	GetByIDFunc func(ctx context.Context, q db.Querier, id string) (*doctor.Doctor, error)
}

func (m *mockDoctors) GetByID(ctx context.Context, q db.Querier, id string) (*doctor.Doctor, error) {
	return m.GetByIDFunc(ctx, q, id)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	routingKey string
	event      interface{}
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedEvent{routingKey: routingKey, event: eventData})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) events() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedEvent(nil), m.published...)
}
