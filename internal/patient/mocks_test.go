package patient

import (
	"context"
	"database/sql"

	"github.com/clinicore/clinical-records-service/internal/db"
)

// passthroughScoper runs the unit of work without a database, so service
// logic can be tested against a mock repository.
type passthroughScoper struct{}

func (passthroughScoper) WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	return fn(ctx, nil)
}

func (passthroughScoper) WithTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return fn(ctx, nil)
}

type mockRepository struct {
	insertFunc        func(tenantID string, req RegisterPatientRequest) (*Patient, error)
	lockFamilyFunc    func(tenantID, mobile string) error
	getByIdentityFunc func(mobile, firstName string) (*Patient, error)
	getByIDFunc       func(id string) (*Patient, error)
	listFamilyFunc    func(mobile string) ([]Patient, error)
	countFamilyFunc   func(mobile string) (int, error)
	hasActiveSelfFunc func(mobile string) (bool, error)
	setActiveFunc     func(id string, active bool) (*Patient, error)
}

func (m *mockRepository) Insert(ctx context.Context, q db.Querier, tenantID string, req RegisterPatientRequest) (*Patient, error) {
	return m.insertFunc(tenantID, req)
}

func (m *mockRepository) LockFamily(ctx context.Context, q db.Querier, tenantID, mobile string) error {
	if m.lockFamilyFunc == nil {
		return nil
	}
	return m.lockFamilyFunc(tenantID, mobile)
}

func (m *mockRepository) GetByIdentity(ctx context.Context, q db.Querier, mobile, firstName string) (*Patient, error) {
	if m.getByIdentityFunc == nil {
		return nil, ErrNotFound
	}
	return m.getByIdentityFunc(mobile, firstName)
}

func (m *mockRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Patient, error) {
	return m.getByIDFunc(id)
}

func (m *mockRepository) ListFamily(ctx context.Context, q db.Querier, mobile string) ([]Patient, error) {
	return m.listFamilyFunc(mobile)
}

func (m *mockRepository) CountActiveFamily(ctx context.Context, q db.Querier, mobile string) (int, error) {
	if m.countFamilyFunc == nil {
		return 0, nil
	}
	return m.countFamilyFunc(mobile)
}

func (m *mockRepository) HasActiveSelf(ctx context.Context, q db.Querier, mobile string) (bool, error) {
	if m.hasActiveSelfFunc == nil {
		return false, nil
	}
	return m.hasActiveSelfFunc(mobile)
}

func (m *mockRepository) SetActive(ctx context.Context, q db.Querier, id string, active bool) (*Patient, error) {
	return m.setActiveFunc(id, active)
}

type mockPublisher struct {
	published []string
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	m.published = append(m.published, routingKey)
	return nil
}

func (m *mockPublisher) Close() error { return nil }
