package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

func seedApps(t *testing.T, s *Store) (frontend, banking *repository.Application) {
	t.Helper()
	ctx := context.Background()

	frontend, err := s.Create(ctx, "frontend-app")
	if err != nil {
		t.Fatalf("create frontend-app: %v", err)
	}
	banking, err = s.Create(ctx, "banking-api")
	if err != nil {
		t.Fatalf("create banking-api: %v", err)
	}
	for _, c := range []string{"withdraw", "deposit"} {
		if err := s.AddCapability(ctx, banking.ID, c); err != nil {
			t.Fatalf("add capability %s: %v", c, err)
		}
	}
	return frontend, banking
}

func tuple(user, capability string) repository.ConsentTuple {
	return repository.ConsentTuple{
		UserID:             user,
		RequestingAppName:  "frontend-app",
		DestinationAppName: "banking-api",
		Capability:         capability,
	}
}

func TestCreateDuplicateApplication(t *testing.T) {
	s := New()
	seedApps(t, s)

	if _, err := s.Create(context.Background(), "banking-api"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestGetByNameUnknown(t *testing.T) {
	s := New()
	if _, err := s.GetByName(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	s := New()
	seedApps(t, s)
	ctx := context.Background()

	first, err := s.Grant(ctx, tuple("u1", "withdraw"))
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := s.Grant(ctx, tuple("u1", "withdraw"))
	if err != nil {
		t.Fatalf("re-grant: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("re-grant created a new record: %s != %s", first.ID, second.ID)
	}
	if !first.GrantedAt.Equal(second.GrantedAt) {
		t.Fatalf("re-grant changed granted_at")
	}

	grants, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("want 1 grant, got %d", len(grants))
	}
}

func TestGrantUnknownApplication(t *testing.T) {
	s := New()
	seedApps(t, s)

	_, err := s.Grant(context.Background(), repository.ConsentTuple{
		UserID:             "u1",
		RequestingAppName:  "ghost-app",
		DestinationAppName: "banking-api",
		Capability:         "withdraw",
	})
	if !errors.Is(err, repository.ErrUnknownApplication) {
		t.Fatalf("want ErrUnknownApplication, got %v", err)
	}
}

func TestIsGrantedExactMatch(t *testing.T) {
	s := New()
	seedApps(t, s)
	ctx := context.Background()

	if _, err := s.Grant(ctx, tuple("u1", "withdraw")); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ok, err := s.IsGranted(ctx, tuple("u1", "withdraw"))
	if err != nil || !ok {
		t.Fatalf("want granted, got ok=%v err=%v", ok, err)
	}

	// Same user, different capability.
	ok, _ = s.IsGranted(ctx, tuple("u1", "deposit"))
	if ok {
		t.Fatal("deposit must not be granted")
	}

	// Different user, same capability.
	ok, _ = s.IsGranted(ctx, tuple("u2", "withdraw"))
	if ok {
		t.Fatal("u2 must not be granted")
	}
}

func TestListByUserOrder(t *testing.T) {
	s := New()
	seedApps(t, s)
	ctx := context.Background()

	for _, c := range []string{"withdraw", "deposit"} {
		if _, err := s.Grant(ctx, tuple("u1", c)); err != nil {
			t.Fatalf("grant %s: %v", c, err)
		}
	}

	grants, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("want 2 grants, got %d", len(grants))
	}
	if grants[0].Capability != "withdraw" || grants[1].Capability != "deposit" {
		t.Fatalf("grants out of order: %s, %s", grants[0].Capability, grants[1].Capability)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	s := New()
	seedApps(t, s)
	ctx := context.Background()

	if _, err := s.Grant(ctx, tuple("u1", "withdraw")); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := s.Revoke(ctx, tuple("u1", "withdraw")); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := s.IsGranted(ctx, tuple("u1", "withdraw")); ok {
		t.Fatal("still granted after revoke")
	}

	// Absent tuple is still success.
	if err := s.Revoke(ctx, tuple("u1", "withdraw")); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}

func TestClearUserCounts(t *testing.T) {
	s := New()
	seedApps(t, s)
	ctx := context.Background()

	for _, c := range []string{"withdraw", "deposit"} {
		if _, err := s.Grant(ctx, tuple("u1", c)); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	if _, err := s.Grant(ctx, tuple("u2", "withdraw")); err != nil {
		t.Fatalf("grant u2: %v", err)
	}

	n, err := s.ClearUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("want 2 cleared, got n=%d err=%v", n, err)
	}
	if ok, _ := s.IsGranted(ctx, tuple("u2", "withdraw")); !ok {
		t.Fatal("u2 grant must survive")
	}

	n, err = s.ClearAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("want 1 cleared, got n=%d err=%v", n, err)
	}
}

func TestDeleteApplicationCascades(t *testing.T) {
	s := New()
	_, banking := seedApps(t, s)
	ctx := context.Background()

	if _, err := s.Grant(ctx, tuple("u1", "withdraw")); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := s.Delete(ctx, banking.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	grants, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("grants must cascade with the application, got %d", len(grants))
	}
}
