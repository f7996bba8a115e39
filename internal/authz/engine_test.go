package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/registry"
	"github.com/dropDatabas3/consentgate/internal/store/memory"
)

func newEngine(t *testing.T) (*StoreEngine, *memory.Store) {
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

	return NewStoreEngine(registry.New(st), st), st
}

func withdrawTuple(user string) repository.ConsentTuple {
	return repository.ConsentTuple{
		UserID:             user,
		RequestingAppName:  "frontend-app",
		DestinationAppName: "banking-api",
		Capability:         "withdraw",
	}
}

func TestAuthorizeConsentRequiredWithoutGrant(t *testing.T) {
	e, _ := newEngine(t)

	d, err := e.Authorize(context.Background(), withdrawTuple("u1"))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Result != ConsentRequired {
		t.Fatalf("want consent_required, got %s", d.Result)
	}
}

func TestAuthorizeAllowAfterGrant(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	if _, err := st.Grant(ctx, withdrawTuple("u1")); err != nil {
		t.Fatalf("grant: %v", err)
	}

	d, err := e.Authorize(ctx, withdrawTuple("u1"))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Result != Allow {
		t.Fatalf("want allow, got %s", d.Result)
	}

	// The grant is user-scoped.
	d, err = e.Authorize(ctx, withdrawTuple("u2"))
	if err != nil {
		t.Fatalf("authorize u2: %v", err)
	}
	if d.Result != ConsentRequired {
		t.Fatalf("u2 must need consent, got %s", d.Result)
	}
}

func TestAuthorizeUnknownCapability(t *testing.T) {
	e, _ := newEngine(t)

	tu := withdrawTuple("u1")
	tu.Capability = "transfer"
	if _, err := e.Authorize(context.Background(), tu); !errors.Is(err, repository.ErrUnknownCapability) {
		t.Fatalf("want ErrUnknownCapability, got %v", err)
	}
}

func TestAuthorizeUnknownApplication(t *testing.T) {
	e, _ := newEngine(t)

	tu := withdrawTuple("u1")
	tu.RequestingAppName = "ghost-app"
	if _, err := e.Authorize(context.Background(), tu); !errors.Is(err, repository.ErrUnknownApplication) {
		t.Fatalf("want ErrUnknownApplication, got %v", err)
	}
}
