package patient

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/clinicore/clinical-records-service/internal/messaging"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/google/uuid"
)

// DefaultFamilyLimit caps how many active members may share one mobile number.
const DefaultFamilyLimit = 10

// FamilyLimitFromEnv reads FAMILY_MAX_MEMBERS with a default of 10.
func FamilyLimitFromEnv() int {
	if s := os.Getenv("FAMILY_MAX_MEMBERS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return DefaultFamilyLimit
}

// MetricsRecorder records patient business metrics
type MetricsRecorder interface {
	RecordPatientRegistration(ctx context.Context, outcome string)
}

// Service implements the patient identity registry on top of the tenant
// connection scoper and the row-isolation policies.
type Service struct {
	scoper      tenantctx.Scoper
	repo        RepositoryInterface
	publisher   messaging.PublisherInterface
	metrics     MetricsRecorder
	familyLimit int
}

func NewService(scoper tenantctx.Scoper, repo RepositoryInterface, publisher messaging.PublisherInterface, familyLimit int) *Service {
	if familyLimit <= 0 {
		familyLimit = DefaultFamilyLimit
	}
	return &Service{
		scoper:      scoper,
		repo:        repo,
		publisher:   publisher,
		familyLimit: familyLimit,
	}
}

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// Register creates a new patient identity. The family invariants are
// checked inside one transaction against the active row set: an advisory
// lock on the family group serializes the count check, and the partial
// unique indexes on the identity and on the self row remain the final
// authority if anything races past the application checks.
func (s *Service) Register(ctx context.Context, tenantID string, req RegisterPatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created *Patient
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		// Serializes concurrent registrations into the same family so the
		// count and primary checks below read a settled row set.
		if err := s.repo.LockFamily(ctx, tx, tenantID, req.MobileNumber); err != nil {
			return err
		}

		hasSelf, err := s.repo.HasActiveSelf(ctx, tx, req.MobileNumber)
		if err != nil {
			return err
		}
		if req.Relationship == RelationshipSelf {
			if hasSelf {
				return ErrPrimaryMemberExists
			}
		} else if !hasSelf {
			return ErrPrimaryMemberRequired
		}

		count, err := s.repo.CountActiveFamily(ctx, tx, req.MobileNumber)
		if err != nil {
			return err
		}
		if count >= s.familyLimit {
			return ErrFamilyLimitExceeded
		}

		// Friendlier error than the constraint violation, but not the guard:
		// the unique index catches the concurrent-insert race.
		if _, err := s.repo.GetByIdentity(ctx, tx, req.MobileNumber, req.FirstName); err == nil {
			return ErrDuplicateIdentity
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		created, err = s.repo.Insert(ctx, tx, tenantID, req)
		return err
	})

	if err != nil {
		s.recordRegistration(ctx, "rejected")
		return nil, err
	}
	s.recordRegistration(ctx, "created")

	event := messaging.PatientRegisteredEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPatientRegistered, uuid.New().String(), tenantID),
		Data: messaging.PatientRegisteredData{
			PatientID:    created.ID,
			MobileNumber: created.MobileNumber,
			FirstName:    created.FirstName,
			Relationship: created.Relationship,
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventPatientRegistered, event); err != nil {
		log.Printf("[ERROR] Failed to publish patient.registered event: %v", err)
	}

	return created, nil
}

// Lookup finds an active patient by the composite natural key.
func (s *Service) Lookup(ctx context.Context, tenantID, mobile, firstName string) (*Patient, error) {
	var found *Patient
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		found, err = s.repo.GetByIdentity(ctx, conn, mobile, firstName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Get finds a patient by surrogate id.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Patient, error) {
	var found *Patient
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

// ListFamily returns the active family group for a mobile number, self first.
func (s *Service) ListFamily(ctx context.Context, tenantID, mobile string) ([]Patient, error) {
	var family []Patient
	err := s.scoper.WithTenant(ctx, tenantID, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		family, err = s.repo.ListFamily(ctx, conn, mobile)
		return err
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// Deactivate soft-disables a patient, releasing the composite identity for
// re-registration.
func (s *Service) Deactivate(ctx context.Context, tenantID, id string) (*Patient, error) {
	var updated *Patient
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !existing.IsActive {
			return ErrAlreadyInactive
		}
		updated, err = s.repo.SetActive(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, tenantID, messaging.EventPatientDeactivated, updated)
	return updated, nil
}

// Reactivate re-enables a deactivated patient. The row re-enters the active
// set, so every registration invariant is re-checked: the identity may have
// been re-registered meanwhile, the family may be full, and a non-self row
// needs its primary member back first.
func (s *Service) Reactivate(ctx context.Context, tenantID, id string) (*Patient, error) {
	var updated *Patient
	err := s.scoper.WithTenantTx(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.IsActive {
			return ErrAlreadyActive
		}

		if err := s.repo.LockFamily(ctx, tx, tenantID, existing.MobileNumber); err != nil {
			return err
		}

		if _, err := s.repo.GetByIdentity(ctx, tx, existing.MobileNumber, existing.FirstName); err == nil {
			return ErrDuplicateIdentity
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		hasSelf, err := s.repo.HasActiveSelf(ctx, tx, existing.MobileNumber)
		if err != nil {
			return err
		}
		if existing.Relationship == RelationshipSelf {
			if hasSelf {
				return ErrPrimaryMemberExists
			}
		} else if !hasSelf {
			return ErrPrimaryMemberRequired
		}

		count, err := s.repo.CountActiveFamily(ctx, tx, existing.MobileNumber)
		if err != nil {
			return err
		}
		if count >= s.familyLimit {
			return ErrFamilyLimitExceeded
		}

		updated, err = s.repo.SetActive(ctx, tx, id, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, tenantID, messaging.EventPatientReactivated, updated)
	return updated, nil
}

func (s *Service) publishLifecycle(ctx context.Context, tenantID, eventType string, p *Patient) {
	event := messaging.PatientRegisteredEvent{
		BaseEvent: messaging.NewBaseEvent(eventType, uuid.New().String(), tenantID),
		Data: messaging.PatientRegisteredData{
			PatientID:    p.ID,
			MobileNumber: p.MobileNumber,
			FirstName:    p.FirstName,
			Relationship: p.Relationship,
		},
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		log.Printf("[ERROR] Failed to publish %s event: %v", eventType, err)
	}
}

func (s *Service) recordRegistration(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPatientRegistration(ctx, outcome)
	}
}
