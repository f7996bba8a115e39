// Package memory implements the repositories with in-process maps. Used for
// development and tests; the semantics mirror the PostgreSQL store, including
// per-tuple upsert atomicity (serialized by the store mutex).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

type application struct {
	id           string
	name         string
	capabilities []string
	createdAt    time.Time
}

// Store holds applications and grants. A single mutex serializes everything;
// fine at in-memory scale.
type Store struct {
	mu     sync.RWMutex
	byName map[string]*application
	byID   map[string]*application

	// grants keyed by tuple key for O(1) exact-match checks.
	grants map[string]*repository.ConsentGrant
	seq    int64
}

func New() *Store {
	return &Store{
		byName: make(map[string]*application),
		byID:   make(map[string]*application),
		grants: make(map[string]*repository.ConsentGrant),
	}
}

func tupleKey(t repository.ConsentTuple) string {
	return strings.Join([]string{t.UserID, t.RequestingAppName, t.DestinationAppName, t.Capability}, "\x00")
}

// --- ApplicationRepository ---

func (s *Store) Create(ctx context.Context, name string) (*repository.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return nil, repository.ErrConflict
	}

	app := &application{
		id:           uuid.NewString(),
		name:         name,
		capabilities: []string{},
		createdAt:    time.Now().UTC(),
	}
	s.byName[name] = app
	s.byID[app.id] = app
	return toDomain(app), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return toDomain(app), nil
}

func (s *Store) GetByName(ctx context.Context, name string) (*repository.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.byName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return toDomain(app), nil
}

func (s *Store) List(ctx context.Context) ([]repository.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]repository.Application, 0, len(s.byName))
	for _, app := range s.byName {
		out = append(out, *toDomain(app))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byName, app.name)

	// Cascade: drop grants referencing the application.
	for k, g := range s.grants {
		if g.RequestingAppName == app.name || g.DestinationAppName == app.name {
			delete(s.grants, k)
		}
	}
	return nil
}

func (s *Store) AddCapability(ctx context.Context, id, capability string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, c := range app.capabilities {
		if c == capability {
			return repository.ErrConflict
		}
	}
	app.capabilities = append(app.capabilities, capability)
	sort.Strings(app.capabilities)
	return nil
}

func (s *Store) RemoveCapability(ctx context.Context, id, capability string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i, c := range app.capabilities {
		if c == capability {
			app.capabilities = append(app.capabilities[:i], app.capabilities[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func toDomain(app *application) *repository.Application {
	caps := make([]string, len(app.capabilities))
	copy(caps, app.capabilities)
	return &repository.Application{
		ID:           app.id,
		Name:         app.name,
		Capabilities: caps,
		CreatedAt:    app.createdAt,
	}
}

// --- ConsentRepository ---

func (s *Store) Grant(ctx context.Context, t repository.ConsentTuple) (*repository.ConsentGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[t.RequestingAppName]; !ok {
		return nil, repository.ErrUnknownApplication
	}
	if _, ok := s.byName[t.DestinationAppName]; !ok {
		return nil, repository.ErrUnknownApplication
	}

	key := tupleKey(t)
	if existing, ok := s.grants[key]; ok {
		g := *existing
		return &g, nil
	}

	s.seq++
	g := &repository.ConsentGrant{
		ID:                 uuid.NewString(),
		UserID:             t.UserID,
		RequestingAppName:  t.RequestingAppName,
		DestinationAppName: t.DestinationAppName,
		Capability:         t.Capability,
		// Nanosecond-distinct timestamps are not guaranteed by the clock;
		// the sequence keeps list order stable for grants in the same tick.
		GrantedAt: time.Now().UTC().Add(time.Duration(s.seq) * time.Nanosecond),
	}
	s.grants[key] = g
	out := *g
	return &out, nil
}

func (s *Store) IsGranted(ctx context.Context, t repository.ConsentTuple) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[tupleKey(t)]
	return ok, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]repository.ConsentGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []repository.ConsentGrant{}
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (s *Store) Revoke(ctx context.Context, t repository.ConsentTuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, tupleKey(t))
	return nil
}

func (s *Store) ClearUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, g := range s.grants {
		if g.UserID == userID {
			delete(s.grants, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.grants)
	s.grants = make(map[string]*repository.ConsentGrant)
	return n, nil
}
