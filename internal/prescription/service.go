package prescription

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/clinicore/clinical-records-service/prescription")

// RepositoryInterface defines the template persistence contract. The five
// Get* lookups are the resolution chain's individual steps.
type RepositoryInterface interface {
	Insert(ctx context.Context, q db.Querier, tenantID string, req CreateTemplateRequest) (*Template, error)
	GetByID(ctx context.Context, q db.Querier, id string) (*Template, error)
	List(ctx context.Context, q db.Querier) ([]Template, error)
	GetExact(ctx context.Context, q db.Querier, doctorID, officeID string) (*Template, error)
	GetDoctorDefault(ctx context.Context, q db.Querier, doctorID string) (*Template, error)
	GetDoctorAny(ctx context.Context, q db.Querier, doctorID string) (*Template, error)
	GetTenantDefault(ctx context.Context, q db.Querier) (*Template, error)
	GetTenantAny(ctx context.Context, q db.Querier) (*Template, error)
}

var _ RepositoryInterface = (*Repository)(nil)

type Service struct {
	scoper tenantctx.Scoper
	repo   RepositoryInterface
}

func NewService(scoper tenantctx.Scoper, repo RepositoryInterface) *Service {
	return &Service{scoper: scoper, repo: repo}
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateTemplateRequest) (*Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created *Template
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		created, err = s.repo.Insert(ctx, tx, tenantID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Template, error) {
	var found *Template
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		found, err = s.repo.GetByID(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Template, error) {
	var templates []Template
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		templates, err = s.repo.List(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// Resolve walks the scope hierarchy from most to least specific and
// returns the first template found, or nil when the tenant has none.
// The steps run as separate lookups on purpose: which level won matters
// when a clinic asks why a given printout looked the way it did.
func (s *Service) Resolve(ctx context.Context, tenantID, doctorID, officeID string) (*Template, error) {
	ctx, span := tracer.Start(ctx, "prescription.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("template.doctor_id", doctorID),
		attribute.String("template.office_id", officeID),
	)

	var resolved *Template
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		steps := []struct {
			name    string
			enabled bool
			lookup  func(context.Context) (*Template, error)
		}{
			{"exact_doctor_office", doctorID != "" && officeID != "", func(ctx context.Context) (*Template, error) {
				return s.repo.GetExact(ctx, conn, doctorID, officeID)
			}},
			{"doctor_default", doctorID != "", func(ctx context.Context) (*Template, error) {
				return s.repo.GetDoctorDefault(ctx, conn, doctorID)
			}},
			{"doctor_any", doctorID != "", func(ctx context.Context) (*Template, error) {
				return s.repo.GetDoctorAny(ctx, conn, doctorID)
			}},
			{"tenant_default", true, func(ctx context.Context) (*Template, error) {
				return s.repo.GetTenantDefault(ctx, conn)
			}},
			{"tenant_any", true, func(ctx context.Context) (*Template, error) {
				return s.repo.GetTenantAny(ctx, conn)
			}},
		}

		for _, step := range steps {
			if !step.enabled {
				continue
			}
			t, err := step.lookup(ctx)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			span.SetAttributes(attribute.String("template.resolved_step", step.name))
			resolved = t
			return nil
		}
		span.SetAttributes(attribute.String("template.resolved_step", "none"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}
