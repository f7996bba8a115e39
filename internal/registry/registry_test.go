package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/store/memory"
)

func newService(t *testing.T) (*Service, *repository.Application) {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	if _, err := st.Create(ctx, "frontend-app"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	banking, err := st.Create(ctx, "banking-api")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.AddCapability(ctx, banking.ID, "withdraw"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(st), banking
}

func TestGetByNameMapsUnknown(t *testing.T) {
	s, _ := newService(t)

	if _, err := s.GetByName(context.Background(), "ghost"); !errors.Is(err, repository.ErrUnknownApplication) {
		t.Fatalf("want ErrUnknownApplication, got %v", err)
	}
}

func TestValidateTuple(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	if err := s.ValidateTuple(ctx, "frontend-app", "banking-api", "withdraw"); err != nil {
		t.Fatalf("valid tuple rejected: %v", err)
	}

	if err := s.ValidateTuple(ctx, "frontend-app", "banking-api", "transfer"); !errors.Is(err, repository.ErrUnknownCapability) {
		t.Fatalf("want ErrUnknownCapability, got %v", err)
	}

	// Unknown application wins over unknown capability.
	if err := s.ValidateTuple(ctx, "ghost", "banking-api", "transfer"); !errors.Is(err, repository.ErrUnknownApplication) {
		t.Fatalf("want ErrUnknownApplication, got %v", err)
	}
}

func TestCacheInvalidationOnCapabilityChange(t *testing.T) {
	s, banking := newService(t)
	ctx := context.Background()

	// Prime the cache.
	if _, err := s.GetByName(ctx, "banking-api"); err != nil {
		t.Fatalf("prime: %v", err)
	}

	if err := s.AddCapability(ctx, banking.ID, "deposit"); err != nil {
		t.Fatalf("add capability: %v", err)
	}

	// The new capability must be visible immediately, not after TTL.
	if err := s.ValidateTuple(ctx, "frontend-app", "banking-api", "deposit"); err != nil {
		t.Fatalf("deposit not visible after invalidation: %v", err)
	}
}
