package doctor

import (
	"context"
	"database/sql"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
)

// RepositoryInterface defines the doctor persistence contract.
type RepositoryInterface interface {
	Insert(ctx context.Context, q db.Querier, tenantID, userID string, req CreateDoctorRequest) (*Doctor, error)
	GetByID(ctx context.Context, q db.Querier, id string) (*Doctor, error)
	List(ctx context.Context, q db.Querier) ([]Doctor, error)
	CountActive(ctx context.Context, q db.Querier) (int, error)
	InsertOffice(ctx context.Context, q db.Querier, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error)
	ListOffices(ctx context.Context, q db.Querier, doctorID string) ([]Office, error)
	MaxDoctorsForTenant(ctx context.Context, q db.Querier, tenantID string) (int, error)
}

var _ RepositoryInterface = (*Repository)(nil)

type Service struct {
	scoper tenantctx.Scoper
	repo   RepositoryInterface
}

func NewService(scoper tenantctx.Scoper, repo RepositoryInterface) *Service {
	return &Service{scoper: scoper, repo: repo}
}

// Create adds a doctor profile, enforcing the tenant's subscription plan
// limit inside the same transaction as the insert.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created *Doctor
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		max, err := s.repo.MaxDoctorsForTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		count, err := s.repo.CountActive(ctx, tx)
		if err != nil {
			return err
		}
		if count >= max {
			return ErrPlanLimitExceeded
		}
		created, err = s.repo.Insert(ctx, tx, tenantID, "", req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Doctor, error) {
	var found *Doctor
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

func (s *Service) List(ctx context.Context, tenantID string) ([]Doctor, error) {
	var doctors []Doctor
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		doctors, err = s.repo.List(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

// AddOffice attaches a clinic location to an existing doctor.
func (s *Service) AddOffice(ctx context.Context, tenantID, doctorID string, req CreateOfficeRequest) (*Office, error) {
	if req.Name == "" {
		return nil, ErrMissingOfficeName
	}

	var created *Office
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		// The doctor must exist and be visible to this tenant.
		if _, err := s.repo.GetByID(ctx, tx, doctorID); err != nil {
			return err
		}
		var err error
		created, err = s.repo.InsertOffice(ctx, tx, tenantID, doctorID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
