package patient_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/clinicore/clinical-records-service/internal/patient"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/clinicore/clinical-records-service/internal/testutil"
)

func registryService(binder *tenantctx.Binder, familyLimit int) *patient.Service {
	return patient.NewService(binder, patient.NewRepository(), testutil.NewMockPublisher(), familyLimit)
}

func memberRequest(mobile, firstName, relationship string) patient.RegisterPatientRequest {
	return patient.RegisterPatientRequest{
		MobileNumber: mobile,
		FirstName:    firstName,
		Relationship: relationship,
	}
}

// Two concurrent primary registrations with different first names pass the
// identity index individually; the family lock and the self index make sure
// only one becomes the primary member.
func TestRegister_ConcurrentPrimaryMembers(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	tenantID := setupTenant(t, database)
	svc := registryService(binder, patient.DefaultFamilyLimit)

	const mobile = "0501112233"
	names := []string{"Layla", "Omar"}
	results := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, results[i] = svc.Register(context.Background(), tenantID,
				memberRequest(mobile, name, patient.RelationshipSelf))
		}(i, name)
	}
	wg.Wait()

	var created, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, patient.ErrPrimaryMemberExists):
			rejected++
		default:
			t.Errorf("unexpected registration error: %v", err)
		}
	}
	if created != 1 || rejected != 1 {
		t.Fatalf("expected one primary and one rejection, got %d created, %d rejected", created, rejected)
	}

	family, err := svc.ListFamily(context.Background(), tenantID, mobile)
	if err != nil {
		t.Fatalf("failed to list family: %v", err)
	}
	selves := 0
	for _, member := range family {
		if member.Relationship == patient.RelationshipSelf {
			selves++
		}
	}
	if selves != 1 {
		t.Fatalf("expected exactly one primary member, found %d", selves)
	}
}

// Concurrent registrations into a nearly full family must not push the
// group past the limit: the family lock serializes the count check.
func TestRegister_ConcurrentFamilyLimit(t *testing.T) {
	database := testutil.SetupTestDB(t)
	binder := tenantctx.NewBinder(database)
	tenantID := setupTenant(t, database)

	const familyLimit = 3
	svc := registryService(binder, familyLimit)

	const mobile = "0502223344"
	if _, err := svc.Register(context.Background(), tenantID,
		memberRequest(mobile, "Layla", patient.RelationshipSelf)); err != nil {
		t.Fatalf("failed to register primary member: %v", err)
	}

	const attempts = 6
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Register(context.Background(), tenantID,
				memberRequest(mobile, fmt.Sprintf("Child%d", i), patient.RelationshipChild))
		}(i)
	}
	wg.Wait()

	var created, limited int
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, patient.ErrFamilyLimitExceeded):
			limited++
		default:
			t.Errorf("unexpected registration error: %v", err)
		}
	}
	if created != familyLimit-1 || limited != attempts-(familyLimit-1) {
		t.Fatalf("expected %d admissions and %d rejections, got %d and %d",
			familyLimit-1, attempts-(familyLimit-1), created, limited)
	}

	family, err := svc.ListFamily(context.Background(), tenantID, mobile)
	if err != nil {
		t.Fatalf("failed to list family: %v", err)
	}
	if len(family) != familyLimit {
		t.Fatalf("family grew past the limit: %d members", len(family))
	}
}
