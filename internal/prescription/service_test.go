package prescription

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/clinicore/clinical-records-service/internal/db"
)

const (
	testTenantID = "7f2c3a10-1b7e-4c8a-9f0d-2a6b5c4d3e2f"
	testDoctorID = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
	testOfficeID = "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
)

type passthroughScoper struct{}

func (passthroughScoper) WithTenant(ctx context.Context, tenantID string, fn func(context.Context, *sql.Conn) error) error {
	return fn(ctx, nil)
}

func (passthroughScoper) WithTenantTx(ctx context.Context, tenantID string, fn func(context.Context, *sql.Tx) error) error {
	return fn(ctx, nil)
}

// chainRepository records which resolution steps ran, in order, and
// serves templates from a fixed per-step table.
type chainRepository struct {
	calls     []string
	templates map[string]*Template
}

func (m *chainRepository) step(name string) (*Template, error) {
	m.calls = append(m.calls, name)
	if t, ok := m.templates[name]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (m *chainRepository) GetExact(ctx context.Context, q db.Querier, doctorID, officeID string) (*Template, error) {
	return m.step("exact_doctor_office")
}

func (m *chainRepository) GetDoctorDefault(ctx context.Context, q db.Querier, doctorID string) (*Template, error) {
	return m.step("doctor_default")
}

func (m *chainRepository) GetDoctorAny(ctx context.Context, q db.Querier, doctorID string) (*Template, error) {
	return m.step("doctor_any")
}

func (m *chainRepository) GetTenantDefault(ctx context.Context, q db.Querier) (*Template, error) {
	return m.step("tenant_default")
}

func (m *chainRepository) GetTenantAny(ctx context.Context, q db.Querier) (*Template, error) {
	return m.step("tenant_any")
}

func (m *chainRepository) Insert(ctx context.Context, q db.Querier, tenantID string, req CreateTemplateRequest) (*Template, error) {
	return nil, errors.New("not implemented")
}

func (m *chainRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Template, error) {
	return nil, errors.New("not implemented")
}

func (m *chainRepository) List(ctx context.Context, q db.Querier) ([]Template, error) {
	return nil, errors.New("not implemented")
}

func newResolver(templates map[string]*Template) (*Service, *chainRepository) {
	repo := &chainRepository{templates: templates}
	return NewService(passthroughScoper{}, repo), repo
}

func TestResolve_ExactMatchWins(t *testing.T) {
	exact := &Template{ID: "t-exact", TenantID: testTenantID}
	svc, repo := newResolver(map[string]*Template{
		"exact_doctor_office": exact,
		"tenant_default":      {ID: "t-tenant"},
	})

	got, err := svc.Resolve(context.Background(), testTenantID, testDoctorID, testOfficeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t-exact" {
		t.Errorf("expected exact template, got %s", got.ID)
	}
	if want := []string{"exact_doctor_office"}; !reflect.DeepEqual(repo.calls, want) {
		t.Errorf("expected calls %v, got %v", want, repo.calls)
	}
}

func TestResolve_FullChainOrder(t *testing.T) {
	svc, repo := newResolver(nil)

	got, err := svc.Resolve(context.Background(), testTenantID, testDoctorID, testOfficeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no template, got %+v", got)
	}
	want := []string{"exact_doctor_office", "doctor_default", "doctor_any", "tenant_default", "tenant_any"}
	if !reflect.DeepEqual(repo.calls, want) {
		t.Errorf("expected step order %v, got %v", want, repo.calls)
	}
}

func TestResolve_SkipsStepsWithoutArguments(t *testing.T) {
	svc, repo := newResolver(nil)

	// No office: the exact step must not run.
	if _, err := svc.Resolve(context.Background(), testTenantID, testDoctorID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"doctor_default", "doctor_any", "tenant_default", "tenant_any"}
	if !reflect.DeepEqual(repo.calls, want) {
		t.Errorf("expected step order %v, got %v", want, repo.calls)
	}

	// No doctor: only tenant-level steps run.
	repo.calls = nil
	if _, err := svc.Resolve(context.Background(), testTenantID, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = []string{"tenant_default", "tenant_any"}
	if !reflect.DeepEqual(repo.calls, want) {
		t.Errorf("expected step order %v, got %v", want, repo.calls)
	}
}

func TestResolve_TenantDefaultServesEveryDoctor(t *testing.T) {
	tenantDefault := &Template{ID: "t-tenant", TenantID: testTenantID, IsDefault: true}
	svc, _ := newResolver(map[string]*Template{"tenant_default": tenantDefault})

	for _, doctorID := range []string{"", testDoctorID, "another-doctor"} {
		got, err := svc.Resolve(context.Background(), testTenantID, doctorID, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID != "t-tenant" {
			t.Errorf("doctor %q: expected tenant default, got %+v", doctorID, got)
		}
	}
}

func TestResolve_DoctorDefaultShadowsTenantDefault(t *testing.T) {
	svc, _ := newResolver(map[string]*Template{
		"doctor_default": {ID: "t-doctor"},
		"tenant_default": {ID: "t-tenant"},
	})

	got, err := svc.Resolve(context.Background(), testTenantID, testDoctorID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t-doctor" {
		t.Errorf("expected doctor default to win, got %s", got.ID)
	}
}

func TestResolve_LookupErrorStopsChain(t *testing.T) {
	repo := &chainRepository{}
	boom := errors.New("connection reset")
	svc := NewService(passthroughScoper{}, &failingRepository{chainRepository: repo, err: boom})

	if _, err := svc.Resolve(context.Background(), testTenantID, testDoctorID, testOfficeID); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error to propagate, got %v", err)
	}
}

type failingRepository struct {
	*chainRepository
	err error
}

func (f *failingRepository) GetExact(ctx context.Context, q db.Querier, doctorID, officeID string) (*Template, error) {
	return nil, f.err
}

func TestCreateTemplateRequest_Validate(t *testing.T) {
	req := CreateTemplateRequest{Name: "default layout"}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	req = CreateTemplateRequest{}
	if err := req.Validate(); !errors.Is(err, ErrMissingName) {
		t.Errorf("expected ErrMissingName, got %v", err)
	}

	req = CreateTemplateRequest{Name: "x", OfficeID: testOfficeID}
	if err := req.Validate(); !errors.Is(err, ErrOfficeNeedsDoctor) {
		t.Errorf("expected ErrOfficeNeedsDoctor, got %v", err)
	}
}
