package repository

import (
	"context"
	"time"
)

// ConsentGrant is one persisted authorization fact: user_id allowed
// requesting app to invoke capability on destination app. UserID is always
// the verified token subject.
type ConsentGrant struct {
	ID                 string
	UserID             string
	RequestingAppName  string
	DestinationAppName string
	Capability         string
	GrantedAt          time.Time
}

// ConsentTuple identifies a grant without its record metadata.
type ConsentTuple struct {
	UserID             string
	RequestingAppName  string
	DestinationAppName string
	Capability         string
}

// ConsentRepository manages consent grants. At most one grant exists per
// tuple; Grant is an upsert and implementations must make the check-then-
// write atomic per tuple (unique constraint or equivalent), not with a
// store-wide lock.
type ConsentRepository interface {
	// Grant records consent for the tuple. Idempotent: granting an
	// already-granted tuple returns the existing grant unchanged (GrantedAt
	// is not refreshed). Application and capability validation is the
	// caller's job (see registry.Service); implementations only enforce the
	// referential integrity they can express.
	Grant(ctx context.Context, t ConsentTuple) (*ConsentGrant, error)

	// IsGranted reports whether an exact-match grant exists. Capability
	// matching is case-sensitive string equality, no wildcards.
	IsGranted(ctx context.Context, t ConsentTuple) (bool, error)

	// ListByUser returns the user's grants ordered by GrantedAt ascending.
	// An empty slice, not an error, when the user has none.
	ListByUser(ctx context.Context, userID string) ([]ConsentGrant, error)

	// Revoke deletes the matching grant. Revoking a non-existent tuple is a
	// no-op success.
	Revoke(ctx context.Context, t ConsentTuple) error

	// ClearUser deletes every grant for the user and returns how many were
	// removed. No-op success when there are none.
	ClearUser(ctx context.Context, userID string) (int, error)

	// ClearAll deletes every grant in the store and returns the count.
	ClearAll(ctx context.Context) (int, error)
}
