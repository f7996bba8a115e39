// Package handshake implements the consent redirect/callback state machine.
//
// One pending consent attempt moves through:
//
//	issued -> (callback) -> decision received -> retry dispatched
//	issued -> (TTL expiry) -> abandoned
//
// The record bridging the redirect lives server-side in the cache, keyed by
// the hash of a single-use state token. Consuming the state is an atomic
// GetDel, so a replayed or concurrent duplicate callback always fails.
package handshake

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

const stateKeyPrefix = "consent:state:"

// stateBytes is the entropy of a state token before encoding.
const stateBytes = 32

// Config for the handshake service.
type Config struct {
	// TTL bounds the challenge lifetime. A challenge not completed within
	// it is abandoned and its state becomes permanently invalid.
	TTL time.Duration

	// ConsentUIURL is the interactive consent surface the caller's agent is
	// redirected to.
	ConsentUIURL string

	// CallbackURL is where the consent UI reports the decision.
	CallbackURL string
}

// Service issues and completes consent challenges.
type Service struct {
	cfg      Config
	cache    cache.Client
	consents repository.ConsentRepository
	retry    Dispatcher
}

func New(cfg Config, c cache.Client, consents repository.ConsentRepository, retry Dispatcher) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Service{cfg: cfg, cache: c, consents: consents, retry: retry}
}

func stateKey(state string) string {
	// Stored hashed: a cache dump must not yield replayable states.
	return stateKeyPrefix + tokens.SHA256Base64URL(state)
}

// Issue creates a challenge for the tuple and stores its record under the
// hashed state. bearerToken and actionURL are captured for the post-consent
// retry.
func (s *Service) Issue(ctx context.Context, t repository.ConsentTuple, bearerToken, actionURL string) (*Challenge, error) {
	log := logger.From(ctx).With(logger.Layer("handshake"), logger.Op("issue"))

	state, err := tokens.GenerateOpaqueToken(stateBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := record{
		UserID:             t.UserID,
		RequestingAppName:  t.RequestingAppName,
		DestinationAppName: t.DestinationAppName,
		Capability:         t.Capability,
		BearerToken:        bearerToken,
		ActionURL:          actionURL,
		IssuedAt:           now,
		ExpiresAt:          now.Add(s.cfg.TTL),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, stateKey(state), string(raw), s.cfg.TTL); err != nil {
		return nil, err
	}

	metrics.ChallengesIssued.Inc()
	log.Info("consent challenge issued",
		logger.UserID(t.UserID),
		logger.RequestingApp(t.RequestingAppName),
		logger.DestinationApp(t.DestinationAppName),
		logger.Capability(t.Capability),
	)

	return &Challenge{
		State:       state,
		Tuple:       t,
		ConsentURL:  s.consentURL(state, t),
		CallbackURL: s.cfg.CallbackURL,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// consentURL builds the redirect target for the interactive consent surface.
// The tuple parameters are display hints for the form; the authoritative
// tuple is recovered server-side from the state at callback time.
func (s *Service) consentURL(state string, t repository.ConsentTuple) string {
	u, err := url.Parse(s.cfg.ConsentUIURL)
	if err != nil {
		return s.cfg.ConsentUIURL
	}
	q := u.Query()
	q.Set("requesting_app", t.RequestingAppName)
	q.Set("destination_app", t.DestinationAppName)
	q.Set("capability", t.Capability)
	q.Set("state", state)
	q.Set("callback_url", s.cfg.CallbackURL)
	u.RawQuery = q.Encode()
	return u.String()
}

// Peek returns the pending challenge info for the consent UI without
// consuming the state.
func (s *Service) Peek(ctx context.Context, state string) (*PendingInfo, error) {
	rec, err := s.load(ctx, state, false)
	if err != nil {
		return nil, err
	}
	return &PendingInfo{
		RequestingAppName:  rec.RequestingAppName,
		DestinationAppName: rec.DestinationAppName,
		Capability:         rec.Capability,
		ExpiresAt:          rec.ExpiresAt,
	}, nil
}

// Complete processes a consent decision. The state is consumed on both
// branches; replaying it fails with ErrInvalidCallback. When callerSubject is
// non-empty (authenticated callback) it must match the challenge's user.
func (s *Service) Complete(ctx context.Context, state string, granted bool, callerSubject string) (*Outcome, error) {
	log := logger.From(ctx).With(logger.Layer("handshake"), logger.Op("complete"))

	rec, err := s.load(ctx, state, true)
	if err != nil {
		metrics.CallbackOutcomes.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if callerSubject != "" && callerSubject != rec.UserID {
		log.Warn("callback subject does not match challenge",
			logger.UserID(rec.UserID),
			logger.String("caller_subject", callerSubject),
		)
		metrics.CallbackOutcomes.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCallback
	}

	if !granted {
		metrics.CallbackOutcomes.WithLabelValues("denied").Inc()
		log.Info("consent denied",
			logger.UserID(rec.UserID),
			logger.Capability(rec.Capability),
		)
		return &Outcome{Granted: false}, nil
	}

	grant, err := s.consents.Grant(ctx, rec.tuple())
	if err != nil {
		// The state is already consumed; the caller restarts the flow.
		return nil, err
	}

	metrics.CallbackOutcomes.WithLabelValues("granted").Inc()
	log.Info("consent granted",
		logger.UserID(rec.UserID),
		logger.RequestingApp(rec.RequestingAppName),
		logger.DestinationApp(rec.DestinationAppName),
		logger.Capability(rec.Capability),
	)

	out := &Outcome{Granted: true, Grant: grant}
	if s.retry != nil && rec.ActionURL != "" {
		out.Retry = s.dispatchRetry(ctx, rec)
	}
	return out, nil
}

// dispatchRetry re-invokes the originally blocked action exactly once. A
// failed retry is reported, never re-dispatched.
func (s *Service) dispatchRetry(ctx context.Context, rec *record) *RetryResult {
	log := logger.From(ctx).With(logger.Layer("handshake"), logger.Op("retry"))

	res, err := s.retry.Dispatch(ctx, rec.ActionURL, rec.BearerToken)
	if err != nil {
		metrics.RetryDispatches.WithLabelValues("failed").Inc()
		log.Warn("retry dispatch failed", logger.Err(err), logger.String("action_url", rec.ActionURL))
		return &RetryResult{Dispatched: true, Error: err.Error()}
	}

	metrics.RetryDispatches.WithLabelValues("ok").Inc()
	res.Dispatched = true
	return res
}

// load fetches (and with consume, atomically invalidates) the record for a
// state token.
func (s *Service) load(ctx context.Context, state string, consume bool) (*record, error) {
	if state == "" {
		return nil, ErrInvalidCallback
	}

	var raw string
	var err error
	if consume {
		raw, err = s.cache.GetDel(ctx, stateKey(state))
	} else {
		raw, err = s.cache.Get(ctx, stateKey(state))
	}
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrInvalidCallback
		}
		return nil, err
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, ErrInvalidCallback
	}

	// Belt and braces next to the cache TTL; also covers backends without
	// native expiry.
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrInvalidCallback
	}
	return &rec, nil
}
