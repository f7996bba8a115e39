// Package registry wraps the application repository with the lookup side of
// the protocol: which applications exist and which capabilities a destination
// exposes. Lookups are read-mostly and sit on the hot authorization path, so
// they go through a short-lived cache with singleflight collapse.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

const lookupTTL = 5 * time.Second

type cachedApp struct {
	app       *repository.Application
	fetchedAt time.Time
}

// Service exposes registry lookups and admin mutations.
type Service struct {
	repo repository.ApplicationRepository

	mu    sync.RWMutex
	cache map[string]cachedApp
	sf    singleflight.Group
}

func New(repo repository.ApplicationRepository) *Service {
	return &Service{
		repo:  repo,
		cache: make(map[string]cachedApp),
	}
}

// GetByName resolves an application, serving recent hits from cache.
// Returns repository.ErrUnknownApplication for missing names so callers on
// the decision path get the protocol-level error directly.
func (s *Service) GetByName(ctx context.Context, name string) (*repository.Application, error) {
	s.mu.RLock()
	if e, ok := s.cache[name]; ok && time.Since(e.fetchedAt) < lookupTTL {
		s.mu.RUnlock()
		return e.app, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sf.Do(name, func() (any, error) {
		app, err := s.repo.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, repository.ErrUnknownApplication
			}
			return nil, err
		}
		s.mu.Lock()
		s.cache[name] = cachedApp{app: app, fetchedAt: time.Now()}
		s.mu.Unlock()
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.Application), nil
}

// CapabilitiesOf returns the capabilities the destination application exposes.
func (s *Service) CapabilitiesOf(ctx context.Context, name string) ([]string, error) {
	app, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return app.Capabilities, nil
}

// ValidateTuple checks that both applications exist and that the destination
// exposes the capability. Fails fast with ErrUnknownApplication /
// ErrUnknownCapability before any consent lookup.
func (s *Service) ValidateTuple(ctx context.Context, requestingApp, destinationApp, capability string) error {
	if _, err := s.GetByName(ctx, requestingApp); err != nil {
		return err
	}
	dest, err := s.GetByName(ctx, destinationApp)
	if err != nil {
		return err
	}
	for _, c := range dest.Capabilities {
		if c == capability {
			return nil
		}
	}
	return repository.ErrUnknownCapability
}

// ListApplications returns all registered applications ordered by name.
func (s *Service) ListApplications(ctx context.Context) ([]repository.Application, error) {
	return s.repo.List(ctx)
}

// GetByID returns one application with its capabilities.
func (s *Service) GetByID(ctx context.Context, id string) (*repository.Application, error) {
	return s.repo.GetByID(ctx, id)
}

// Create registers an application and invalidates the lookup cache.
func (s *Service) Create(ctx context.Context, name string) (*repository.Application, error) {
	app, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.invalidate(name)
	return app, nil
}

// Delete removes an application.
func (s *Service) Delete(ctx context.Context, id string) error {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(app.Name)
	return nil
}

// AddCapability declares a capability on an application.
func (s *Service) AddCapability(ctx context.Context, id, capability string) error {
	if err := s.repo.AddCapability(ctx, id, capability); err != nil {
		return err
	}
	s.invalidateByID(ctx, id)
	return nil
}

// RemoveCapability removes a declared capability.
func (s *Service) RemoveCapability(ctx context.Context, id, capability string) error {
	if err := s.repo.RemoveCapability(ctx, id, capability); err != nil {
		return err
	}
	s.invalidateByID(ctx, id)
	return nil
}

func (s *Service) invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

func (s *Service) invalidateByID(ctx context.Context, id string) {
	if app, err := s.repo.GetByID(ctx, id); err == nil {
		s.invalidate(app.Name)
		return
	}
	// Unknown id: drop everything rather than serve a stale capability set.
	s.mu.Lock()
	s.cache = make(map[string]cachedApp)
	s.mu.Unlock()
}
