package tenant

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/clinicore/clinical-records-service/internal/db"
	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/pagination"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryInterface defines the tenant and user persistence contract.
type RepositoryInterface interface {
	Insert(ctx context.Context, q db.Querier, t *Tenant) error
	GetByID(ctx context.Context, q db.Querier, id string) (*Tenant, error)
	GetByCode(ctx context.Context, q db.Querier, code string) (*Tenant, error)
	List(ctx context.Context, q db.Querier, params pagination.Params) ([]Tenant, int, error)
	SetActive(ctx context.Context, q db.Querier, id string, active bool) (*Tenant, error)
	UpdatePlan(ctx context.Context, q db.Querier, id, plan string, limits PlanLimits) (*Tenant, error)
	InsertUser(ctx context.Context, q db.Querier, u *User) error
	GetUserByUsername(ctx context.Context, q db.Querier, username string) (*User, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// DoctorRegistrar creates the optional founding doctor profile during
// clinic registration.
type DoctorRegistrar interface {
	Insert(ctx context.Context, q db.Querier, tenantID, userID string, req doctor.CreateDoctorRequest) (*doctor.Doctor, error)
}

// Service manages tenant lifecycle. Tenant and user rows live outside the
// row-isolation policies, so administrative reads run directly on the
// shared pool; only the registration bootstrap goes through the binder,
// because the founding doctor row is tenant-owned and its write check
// requires the new tenant to be bound first.
type Service struct {
	db        *sql.DB
	scoper    tenantctx.Scoper
	repo      RepositoryInterface
	doctors   DoctorRegistrar
	publisher messaging.PublisherInterface
}

func NewService(database *sql.DB, scoper tenantctx.Scoper, repo RepositoryInterface, doctors DoctorRegistrar, publisher messaging.PublisherInterface) *Service {
	return &Service{
		db:        database,
		scoper:    scoper,
		repo:      repo,
		doctors:   doctors,
		publisher: publisher,
	}
}

// RegisterResult is what a successful clinic bootstrap returns.
type RegisterResult struct {
	Tenant  *Tenant        `json:"tenant"`
	OwnerID string         `json:"owner_id"`
	Doctor  *doctor.Doctor `json:"doctor,omitempty"`
}

// RegisterClinic bootstraps a new tenant in one transaction: tenant row,
// then owner user, then the optional founding doctor. The tenant id is
// generated up front and bound transaction-locally before any insert runs,
// so the doctor write passes its isolation check and everything rolls back
// together on failure.
func (s *Service) RegisterClinic(ctx context.Context, req RegisterClinicRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limits, _ := LimitsForPlan(req.Plan)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Owner.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tenant := &Tenant{
		ID:           NewTenantID(),
		Code:         generateCode(req.Name),
		Name:         req.Name,
		Plan:         req.Plan,
		MaxDoctors:   limits.MaxDoctors,
		MaxPatients:  limits.MaxPatients,
		MaxStorageMB: limits.MaxStorageMB,
		IsActive:     true,
		CreatedAt:    now,
	}
	owner := &User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Username:     req.Owner.Username,
		PasswordHash: string(hash),
		Role:         "owner",
		CreatedAt:    now,
	}

	var founding *doctor.Doctor
	err = s.scoper.WithTenantTx(ctx, tenant.ID, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.Insert(ctx, tx, tenant); err != nil {
			return err
		}
		if err := s.repo.InsertUser(ctx, tx, owner); err != nil {
			return err
		}
		if req.Doctor != nil {
			var err error
			founding, err = s.doctors.Insert(ctx, tx, tenant.ID, owner.ID, *req.Doctor)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := messaging.TenantRegisteredEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventTenantRegistered, uuid.New().String(), tenant.ID),
		Data: messaging.TenantRegisteredData{
			TenantCode: tenant.Code,
			Name:       tenant.Name,
			Plan:       tenant.Plan,
			OwnerID:    owner.ID,
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventTenantRegistered, event); err != nil {
		log.Printf("[ERROR] Failed to publish tenant.registered event: %v", err)
	}

	return &RegisterResult{Tenant: tenant, OwnerID: owner.ID, Doctor: founding}, nil
}

// Authenticate is the credential lookup path. It runs before any tenant is
// bound, which is why the users table sits outside row isolation. Unknown
// usernames and wrong passwords produce the same error so the endpoint
// does not reveal which of the two failed.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByUsername(ctx, s.db, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	owning, err := s.repo.GetByID(ctx, s.db, user.TenantID)
	if err != nil {
		return nil, err
	}
	if !owning.IsActive {
		return nil, ErrTenantDeactivated
	}

	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Tenant, error) {
	return s.repo.GetByCode(ctx, s.db, code)
}

func (s *Service) List(ctx context.Context, params pagination.Params) ([]Tenant, pagination.Meta, error) {
	tenants, total, err := s.repo.List(ctx, s.db, params)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return tenants, params.CalculateMeta(total), nil
}

// ChangePlan moves a tenant to a new plan and applies its limits.
func (s *Service) ChangePlan(ctx context.Context, id, plan string) (*Tenant, error) {
	limits, ok := LimitsForPlan(plan)
	if !ok {
		return nil, ErrInvalidPlan
	}

	updated, err := s.repo.UpdatePlan(ctx, s.db, id, plan, limits)
	if err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, messaging.EventTenantPlanChanged, updated)
	return updated, nil
}

// Deactivate soft-disables a tenant. The rows stay; requests for the
// tenant start failing authorization.
func (s *Service) Deactivate(ctx context.Context, id string) (*Tenant, error) {
	current, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, ErrAlreadyInactive
	}

	updated, err := s.repo.SetActive(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, messaging.EventTenantDeactivated, updated)
	return updated, nil
}

func (s *Service) Reactivate(ctx context.Context, id string) (*Tenant, error) {
	current, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current.IsActive {
		return nil, ErrAlreadyActive
	}
	return s.repo.SetActive(ctx, s.db, id, true)
}

func (s *Service) publishLifecycle(ctx context.Context, eventType string, t *Tenant) {
	event := messaging.TenantRegisteredEvent{
		BaseEvent: messaging.NewBaseEvent(eventType, uuid.New().String(), t.ID),
		Data: messaging.TenantRegisteredData{
			TenantCode: t.Code,
			Name:       t.Name,
			Plan:       t.Plan,
		},
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		log.Printf("[ERROR] Failed to publish %s event: %v", eventType, err)
	}
}

// generateCode derives a stable, human-readable tenant code from the
// clinic name plus a random suffix to keep it unique.
func generateCode(name string) string {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			prefix.WriteRune(r)
			if prefix.Len() >= 3 {
				break
			}
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("CLN")
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return prefix.String() + "-" + strings.ToUpper(suffix)
}
