package repository

import (
	"context"
	"time"
)

// Application is a registry entry. Name is unique and is the join key used by
// consent grants; Capabilities is the ordered set of capability names the
// application exposes as a destination.
type Application struct {
	ID           string
	Name         string
	Capabilities []string
	CreatedAt    time.Time
}

// ApplicationRepository manages the application/capability registry.
type ApplicationRepository interface {
	// Create registers an application. Returns ErrConflict when the name is
	// already taken.
	Create(ctx context.Context, name string) (*Application, error)

	// GetByID returns the application with its capabilities.
	// Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Application, error)

	// GetByName resolves an application by its unique name.
	// Returns ErrNotFound if it does not exist.
	GetByName(ctx context.Context, name string) (*Application, error)

	// List returns all applications ordered by name.
	List(ctx context.Context) ([]Application, error)

	// Delete removes an application and cascades to its capabilities and
	// grants. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// AddCapability declares a capability on an application. Returns
	// ErrConflict when the capability is already declared and ErrNotFound
	// when the application does not exist.
	AddCapability(ctx context.Context, id, capability string) error

	// RemoveCapability removes a declared capability. Returns ErrNotFound
	// when the application or the capability does not exist.
	RemoveCapability(ctx context.Context, id, capability string) error
}
