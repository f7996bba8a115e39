// Package guard wraps a protected action behind the consent protocol. It
// verifies the caller's bearer token, asks the decision engine, and either
// lets the action run or answers with a structured consent_required
// challenge. The 403 is a signal for client-driven retry, not a terminal
// failure.
package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/handshake"
	httperrors "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

// ChallengeIssuer creates the challenge record for a ConsentRequired
// decision. handshake.Service implements it locally; client.Client implements
// it against a remote consent API.
type ChallengeIssuer interface {
	Issue(ctx context.Context, t repository.ConsentTuple, bearerToken, actionURL string) (*handshake.Challenge, error)
}

// Guard protects the actions of one requesting/destination application pair.
type Guard struct {
	// Verifier validates bearer tokens; its subject claim becomes user_id.
	Verifier tokens.Verifier

	// Engine answers allow / consent required.
	Engine authz.Engine

	// Issuer creates the consent challenge on consent required.
	Issuer ChallengeIssuer

	// RequestingApp and DestinationApp identify the delegation parties.
	RequestingApp  string
	DestinationApp string

	// ActionBaseURL is the externally reachable base URL of this service,
	// used to capture the action URL for the post-consent retry.
	ActionBaseURL string
}

// challengeResponse is the 403 consent_required wire shape.
type challengeResponse struct {
	ErrorCode     string        `json:"error_code"`
	ConsentParams consentParams `json:"consent_params"`
	ConsentUIURL  string        `json:"consent_ui_url"`
}

type consentParams struct {
	RequestingApp  string `json:"requesting_app"`
	DestinationApp string `json:"destination_app"`
	Capability     string `json:"capability"`
	State          string `json:"state"`
	CallbackURL    string `json:"callback_url"`
}

// Protect wraps next: the handler only runs when the verified caller has a
// consent grant covering capability.
func (g *Guard) Protect(capability string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.From(r.Context()).With(logger.Layer("guard"), logger.Capability(capability))

		bearer, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			httperrors.WriteError(w, httperrors.ErrUnauthenticated)
			return
		}

		claims, err := g.Verifier.Verify(bearer)
		if err != nil {
			// Cause stays in logs; the response never says why.
			log.Debug("token verification failed", logger.Err(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			httperrors.WriteError(w, httperrors.ErrUnauthenticated)
			return
		}

		tuple := repository.ConsentTuple{
			UserID:             claims.Subject,
			RequestingAppName:  g.RequestingApp,
			DestinationAppName: g.DestinationApp,
			Capability:         capability,
		}

		// Remote engines authenticate their check with the caller's token.
		ctx := withBearer(r.Context(), bearer)
		r = r.WithContext(ctx)

		decision, err := g.Engine.Authorize(ctx, tuple)
		if err != nil {
			g.writeAuthorizeError(w, r, err)
			return
		}

		if decision.Result == authz.Allow {
			next(w, r.WithContext(withClaims(r.Context(), claims)))
			return
		}

		ch, err := g.Issuer.Issue(r.Context(), tuple, bearer, g.actionURL(r))
		if err != nil {
			log.Error("challenge issue failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal)
			return
		}

		log.Info("consent required",
			logger.UserID(tuple.UserID),
			logger.RequestingApp(tuple.RequestingAppName),
			logger.DestinationApp(tuple.DestinationAppName),
		)
		writeChallenge(w, ch)
	}
}

func (g *Guard) writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrUnknownApplication):
		httperrors.WriteError(w, httperrors.ErrUnknownApplication)
	case errors.Is(err, repository.ErrUnknownCapability):
		httperrors.WriteError(w, httperrors.ErrUnknownCapability)
	default:
		logger.From(r.Context()).Error("authorize failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable.WithCause(err))
	}
}

func (g *Guard) actionURL(r *http.Request) string {
	base := strings.TrimRight(g.ActionBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.Path
}

func writeChallenge(w http.ResponseWriter, ch *handshake.Challenge) {
	resp := challengeResponse{
		ErrorCode: "consent_required",
		ConsentParams: consentParams{
			RequestingApp:  ch.Tuple.RequestingAppName,
			DestinationApp: ch.Tuple.DestinationAppName,
			Capability:     ch.Tuple.Capability,
			State:          ch.State,
			CallbackURL:    ch.CallbackURL,
		},
		ConsentUIURL: ch.ConsentURL,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(resp)
}

func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return "", false
	}
	return strings.TrimSpace(ah[len("Bearer "):]), true
}
