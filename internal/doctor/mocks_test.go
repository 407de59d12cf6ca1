package doctor

import (
	"context"
	"database/sql"

	"github.com/clinicore/clinical-records-service/internal/db"
)

// passthroughScoper runs the callback directly so service logic can be
// tested without a database.
type passthroughScoper struct{}

func (passthroughScoper) WithTenant(ctx context.Context, tenantID string, fn func(context.Context, *sql.Conn) error) error {
	return fn(ctx, nil)
}

func (passthroughScoper) WithTenantTx(ctx context.Context, tenantID string, fn func(context.Context, *sql.Tx) error) error {
	return fn(ctx, nil)
}

type mockRepository struct {
	InsertFunc              func(ctx context.Context, q db.Querier, tenantID, userID string, req CreateDoctorRequest) (*Doctor, error)
	GetByIDFunc             func(ctx context.Context, q db.Querier, id string) (*Doctor, error)
	ListFunc                func(ctx context.Context, q db.Querier) ([]Doctor, error)
	CountActiveFunc         func(ctx context.Context, q db.Querier) (int, error)
	InsertOfficeFunc        func(ctx context.Context, q db.Querier, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error)
	ListOfficesFunc         func(ctx context.Context, q db.Querier, doctorID string) ([]Office, error)
	MaxDoctorsForTenantFunc func(ctx context.Context, q db.Querier, tenantID string) (int, error)
}

func (m *mockRepository) Insert(ctx context.Context, q db.Querier, tenantID, userID string, req CreateDoctorRequest) (*Doctor, error) {
	return m.InsertFunc(ctx, q, tenantID, userID, req)
}

func (m *mockRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Doctor, error) {
	return m.GetByIDFunc(ctx, q, id)
}

func (m *mockRepository) List(ctx context.Context, q db.Querier) ([]Doctor, error) {
	return m.ListFunc(ctx, q)
}

func (m *mockRepository) CountActive(ctx context.Context, q db.Querier) (int, error) {
	return m.CountActiveFunc(ctx, q)
}

func (m *mockRepository) InsertOffice(ctx context.Context, q db.Querier, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error) {
	return m.InsertOfficeFunc(ctx, q, tenantID, doctorID, req)
}

func (m *mockRepository) ListOffices(ctx context.Context, q db.Querier, doctorID string) ([]Office, error) {
	return m.ListOfficesFunc(ctx, q, doctorID)
}

func (m *mockRepository) MaxDoctorsForTenant(ctx context.Context, q db.Querier, tenantID string) (int, error) {
	return m.MaxDoctorsForTenantFunc(ctx, q, tenantID)
}
