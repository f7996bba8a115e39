// Package consent implements the consent management service: grant, check,
// list, revoke, clear. Every operation is keyed by the caller's verified
// token subject; a client-asserted user_id is only honored when it matches
// that subject (or the caller is an admin), so one user can never read or
// revoke another's grants.
package consent

import (
	"context"
	"errors"

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/consent"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	"github.com/dropDatabas3/consentgate/internal/registry"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
	"github.com/dropDatabas3/consentgate/internal/validation"
)

// Service errors.
var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidName     = errors.New("invalid capability or application name")
	ErrSubjectMismatch = errors.New("user_id does not match token subject")
	ErrStoreFailed     = errors.New("consent store operation failed")
)

// Service is the consent management contract.
type Service interface {
	Grant(ctx context.Context, caller *tokens.Claims, req dto.GrantRequest) ([]dto.Grant, error)
	Check(ctx context.Context, caller *tokens.Claims, req dto.CheckRequest) (*dto.CheckResponse, error)
	List(ctx context.Context, caller *tokens.Claims, userID string) ([]dto.Grant, error)
	Revoke(ctx context.Context, caller *tokens.Claims, userID string, req dto.RevokeRequest) error
	ClearUser(ctx context.Context, caller *tokens.Claims, userID string) (int, error)
	ClearAll(ctx context.Context, caller *tokens.Claims) (int, error)
}

// Deps are the service dependencies.
type Deps struct {
	Consents repository.ConsentRepository
	Registry *registry.Service
	Engine   authz.Engine
}

type service struct {
	consents repository.ConsentRepository
	registry *registry.Service
	engine   authz.Engine
}

func New(d Deps) Service {
	return &service{consents: d.Consents, registry: d.Registry, engine: d.Engine}
}

// IsAdmin reports whether the claims carry the admin flag. Admin callers may
// operate on other users' grants and run the system-wide clear.
func IsAdmin(c *tokens.Claims) bool {
	if c == nil {
		return false
	}
	v, _ := c.Raw["admin"].(bool)
	return v
}

// authorizeSubject enforces the verified-subject rule.
func authorizeSubject(caller *tokens.Claims, userID string) error {
	if caller == nil {
		return ErrSubjectMismatch
	}
	if caller.Subject == userID || IsAdmin(caller) {
		return nil
	}
	return ErrSubjectMismatch
}

func (s *service) Grant(ctx context.Context, caller *tokens.Claims, req dto.GrantRequest) ([]dto.Grant, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("consent.grant"))

	caps := req.All()
	if req.UserID == "" || req.RequestingAppName == "" || req.DestinationAppName == "" || len(caps) == 0 {
		return nil, ErrMissingFields
	}
	if err := authorizeSubject(caller, req.UserID); err != nil {
		return nil, err
	}

	// Validate everything before writing anything: a bad capability in the
	// batch must not leave partial grants behind.
	for _, c := range caps {
		if !validation.ValidCapabilityName(c) {
			return nil, ErrInvalidName
		}
		if err := s.registry.ValidateTuple(ctx, req.RequestingAppName, req.DestinationAppName, c); err != nil {
			return nil, err
		}
	}

	out := make([]dto.Grant, 0, len(caps))
	for _, c := range caps {
		g, err := s.consents.Grant(ctx, repository.ConsentTuple{
			UserID:             req.UserID,
			RequestingAppName:  req.RequestingAppName,
			DestinationAppName: req.DestinationAppName,
			Capability:         c,
		})
		if err != nil {
			log.Error("grant failed", logger.Err(err), logger.Capability(c))
			return nil, storeErr(err)
		}
		out = append(out, toDTO(g))
	}

	log.Info("consent granted",
		logger.UserID(req.UserID),
		logger.RequestingApp(req.RequestingAppName),
		logger.DestinationApp(req.DestinationAppName),
		logger.Count(len(out)),
	)
	return out, nil
}

func (s *service) Check(ctx context.Context, caller *tokens.Claims, req dto.CheckRequest) (*dto.CheckResponse, error) {
	if req.UserID == "" || req.RequestingAppName == "" || req.DestinationAppName == "" || len(req.Capabilities) == 0 {
		return nil, ErrMissingFields
	}
	if err := authorizeSubject(caller, req.UserID); err != nil {
		return nil, err
	}

	// Each capability goes through the decision engine, so an unknown name
	// fails as a malformed request instead of reading as "not granted".
	resp := &dto.CheckResponse{Granted: make(map[string]bool, len(req.Capabilities)), AllGranted: true}
	for _, c := range req.Capabilities {
		d, err := s.engine.Authorize(ctx, repository.ConsentTuple{
			UserID:             req.UserID,
			RequestingAppName:  req.RequestingAppName,
			DestinationAppName: req.DestinationAppName,
			Capability:         c,
		})
		if err != nil {
			return nil, storeErr(err)
		}
		ok := d.Result == authz.Allow
		resp.Granted[c] = ok
		if !ok {
			resp.AllGranted = false
		}
	}
	return resp, nil
}

func (s *service) List(ctx context.Context, caller *tokens.Claims, userID string) ([]dto.Grant, error) {
	if userID == "" {
		return nil, ErrMissingFields
	}
	if err := authorizeSubject(caller, userID); err != nil {
		return nil, err
	}

	grants, err := s.consents.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]dto.Grant, 0, len(grants))
	for i := range grants {
		out = append(out, toDTO(&grants[i]))
	}
	return out, nil
}

func (s *service) Revoke(ctx context.Context, caller *tokens.Claims, userID string, req dto.RevokeRequest) error {
	if userID == "" || req.RequestingAppName == "" || req.DestinationAppName == "" || req.Capability == "" {
		return ErrMissingFields
	}
	if err := authorizeSubject(caller, userID); err != nil {
		return err
	}

	// Idempotent: revoking a tuple that never existed is success.
	err := s.consents.Revoke(ctx, repository.ConsentTuple{
		UserID:             userID,
		RequestingAppName:  req.RequestingAppName,
		DestinationAppName: req.DestinationAppName,
		Capability:         req.Capability,
	})
	if err != nil {
		return storeErr(err)
	}

	logger.From(ctx).Info("consent revoked",
		logger.Layer("service"),
		logger.UserID(userID),
		logger.Capability(req.Capability),
	)
	return nil
}

func (s *service) ClearUser(ctx context.Context, caller *tokens.Claims, userID string) (int, error) {
	if userID == "" {
		return 0, ErrMissingFields
	}
	if err := authorizeSubject(caller, userID); err != nil {
		return 0, err
	}

	n, err := s.consents.ClearUser(ctx, userID)
	if err != nil {
		return 0, storeErr(err)
	}

	logger.From(ctx).Info("user consents cleared",
		logger.Layer("service"),
		logger.UserID(userID),
		logger.Count(n),
	)
	return n, nil
}

func (s *service) ClearAll(ctx context.Context, caller *tokens.Claims) (int, error) {
	if !IsAdmin(caller) {
		return 0, ErrSubjectMismatch
	}

	n, err := s.consents.ClearAll(ctx)
	if err != nil {
		return 0, storeErr(err)
	}

	logger.From(ctx).Warn("all consents cleared", logger.Layer("service"), logger.Count(n))
	return n, nil
}

func toDTO(g *repository.ConsentGrant) dto.Grant {
	return dto.Grant{
		ID:                 g.ID,
		UserID:             g.UserID,
		RequestingAppName:  g.RequestingAppName,
		DestinationAppName: g.DestinationAppName,
		Capability:         g.Capability,
		GrantedAt:          g.GrantedAt,
	}
}

// storeErr keeps sentinel errors intact and folds everything else into
// ErrStoreFailed for the 503 path.
func storeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnknownApplication),
		errors.Is(err, repository.ErrUnknownCapability),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrConflict):
		return err
	default:
		return errors.Join(ErrStoreFailed, err)
	}
}
