// Package authz holds the authorization decision engine: given the identity
// tuple of a prospective on-behalf-of action, decide Allow or
// ConsentRequired. The engine only reads; issuing the challenge record for a
// ConsentRequired outcome belongs to the handshake layer.
package authz

import (
	"context"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
)

// Result is the outcome of an authorization decision.
type Result string

const (
	// Allow means a consent grant covers the tuple; the action may proceed.
	Allow Result = "allow"

	// ConsentRequired means no grant covers the tuple. Not a terminal
	// failure: the caller is expected to complete the consent flow and
	// retry.
	ConsentRequired Result = "consent_required"
)

// Decision is an authorization verdict for one tuple.
type Decision struct {
	Result Result
	Tuple  repository.ConsentTuple
}

// Engine decides whether an on-behalf-of action is authorized. Implementations
// must be safe for concurrent use.
type Engine interface {
	Authorize(ctx context.Context, t repository.ConsentTuple) (*Decision, error)
}

// StoreEngine is the canonical Engine: registry validation first, then an
// exact-match lookup against the consent store.
type StoreEngine struct {
	registry RegistryValidator
	consents repository.ConsentRepository
}

// RegistryValidator is the slice of the registry the engine needs.
type RegistryValidator interface {
	ValidateTuple(ctx context.Context, requestingApp, destinationApp, capability string) error
}

func NewStoreEngine(reg RegistryValidator, consents repository.ConsentRepository) *StoreEngine {
	return &StoreEngine{registry: reg, consents: consents}
}

// Authorize validates the tuple against the registry before consulting the
// store, so a malformed request fails with ErrUnknownApplication or
// ErrUnknownCapability instead of a misleading consent_required.
func (e *StoreEngine) Authorize(ctx context.Context, t repository.ConsentTuple) (*Decision, error) {
	log := logger.From(ctx).With(logger.Layer("authz"), logger.Op("authorize"))

	if err := e.registry.ValidateTuple(ctx, t.RequestingAppName, t.DestinationAppName, t.Capability); err != nil {
		return nil, err
	}

	granted, err := e.consents.IsGranted(ctx, t)
	if err != nil {
		return nil, err
	}

	d := &Decision{Tuple: t}
	if granted {
		d.Result = Allow
	} else {
		d.Result = ConsentRequired
	}

	metrics.AuthorizeDecisions.WithLabelValues(string(d.Result)).Inc()
	log.Debug("authorization decided",
		logger.UserID(t.UserID),
		logger.RequestingApp(t.RequestingAppName),
		logger.DestinationApp(t.DestinationAppName),
		logger.Capability(t.Capability),
		logger.Decision(string(d.Result)),
	)
	return d, nil
}
