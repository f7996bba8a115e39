// Package store selects and builds the persistence backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/store/memory"
	"github.com/dropDatabas3/consentgate/internal/store/pg"
)

// Repositories bundles the backend's repository implementations.
type Repositories struct {
	Applications repository.ApplicationRepository
	Consents     repository.ConsentRepository

	closeFn func()
	pingFn  func(context.Context) error
}

// Close releases backend resources. Safe on nil.
func (r *Repositories) Close() {
	if r != nil && r.closeFn != nil {
		r.closeFn()
	}
}

// Ping verifies the backend is reachable. The memory backend is always ready.
func (r *Repositories) Ping(ctx context.Context) error {
	if r == nil || r.pingFn == nil {
		return nil
	}
	return r.pingFn(ctx)
}

// Options configures the backend.
type Options struct {
	// Driver is "postgres" or "memory". Empty defaults to memory.
	Driver string

	// DSN is the postgres connection string.
	DSN string

	MaxConns        int32
	ConnMaxLifetime time.Duration
}

// New builds the repositories for the configured driver.
func New(ctx context.Context, opts Options) (*Repositories, error) {
	switch opts.Driver {
	case "postgres":
		st, err := pg.New(ctx, opts.DSN, pg.Config{
			MaxConns:        opts.MaxConns,
			ConnMaxLifetime: opts.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return &Repositories{
			Applications: st,
			Consents:     st,
			closeFn:      st.Close,
			pingFn:       st.Ping,
		}, nil

	case "memory", "":
		st := memory.New()
		return &Repositories{
			Applications: st,
			Consents:     st,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
