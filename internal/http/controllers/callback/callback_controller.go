// Package callback exposes the consent handshake endpoints: challenge
// issuance, the pending-challenge peek for the consent form, and the
// decision callback that closes the loop.
package callback

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/handshake"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/consent"
	httperrors "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/http/middlewares"
	"github.com/dropDatabas3/consentgate/internal/registry"
)

type Controller struct {
	handshake *handshake.Service
	registry  *registry.Service

	// requireCallbackAuth rejects callbacks without a verified bearer. Kept
	// off in dev so the browser flow can complete the callback directly.
	requireCallbackAuth bool
}

func NewController(hs *handshake.Service, reg *registry.Service, requireCallbackAuth bool) *Controller {
	return &Controller{handshake: hs, registry: reg, requireCallbackAuth: requireCallbackAuth}
}

// CreateChallenge issues a consent challenge for the caller's user. The
// bearer token from the Authorization header is captured so the blocked
// action can be retried after consent.
// POST /api/v1/consent/challenge
func (c *Controller) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.GetClaims(r.Context())
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}

	var req dto.ChallengeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.RequestingAppName == "" || req.DestinationAppName == "" || req.Capability == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	if err := c.registry.ValidateTuple(r.Context(), req.RequestingAppName, req.DestinationAppName, req.Capability); err != nil {
		writeTupleError(w, err)
		return
	}

	tuple := repository.ConsentTuple{
		UserID:             claims.Subject,
		RequestingAppName:  req.RequestingAppName,
		DestinationAppName: req.DestinationAppName,
		Capability:         req.Capability,
	}

	ch, err := c.handshake.Issue(r.Context(), tuple, rawBearer(r), req.ActionURL)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.ChallengeResponse{
		State:        ch.State,
		ConsentUIURL: ch.ConsentURL,
		CallbackURL:  ch.CallbackURL,
		ExpiresAt:    ch.ExpiresAt,
	})
}

// Info returns what the pending challenge is asking for, without consuming
// the state. The consent form renders from this.
// GET /api/v1/consent/challenge/info?state=...
func (c *Controller) Info(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state required"))
		return
	}

	info, err := c.handshake.Peek(r.Context(), state)
	if err != nil {
		writeHandshakeError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.ChallengeInfoResponse{
		RequestingAppName:  info.RequestingAppName,
		DestinationAppName: info.DestinationAppName,
		Capability:         info.Capability,
		ExpiresAt:          info.ExpiresAt,
	})
}

// Callback receives the consent decision. The state is consumed whichever
// way the decision went; a second delivery of the same state is rejected.
// POST /api/v1/consent/callback
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	var req dto.CallbackRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	c.complete(w, r, req)
}

// CallbackQuery is the browser-redirect form of Callback.
// GET /api/v1/consent/callback?granted=true&state=...
func (c *Controller) CallbackQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c.complete(w, r, dto.CallbackRequest{
		Granted: q.Get("granted"),
		State:   q.Get("state"),
	})
}

func (c *Controller) complete(w http.ResponseWriter, r *http.Request, req dto.CallbackRequest) {
	if req.State == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidCallback)
		return
	}
	if c.requireCallbackAuth && middlewares.GetClaims(r.Context()) == nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}

	out, err := c.handshake.Complete(r.Context(), req.State, req.GrantedBool(), middlewares.GetUserID(r.Context()))
	if err != nil {
		writeHandshakeError(w, err)
		return
	}

	resp := dto.CallbackResponse{Granted: out.Granted}
	if out.Granted {
		resp.Message = "consent granted"
	} else {
		resp.Message = "consent denied"
	}
	if out.Retry != nil {
		resp.Retry = &dto.RetryResult{
			Dispatched: out.Retry.Dispatched,
			StatusCode: out.Retry.StatusCode,
			Body:       out.Retry.Body,
			Error:      out.Retry.Error,
		}
	}

	helpers.WriteJSON(w, http.StatusOK, resp)
}

// rawBearer returns the bare token from the Authorization header, or "".
func rawBearer(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) > 7 && strings.EqualFold(ah[:7], "bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	return ""
}

func writeTupleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUnknownApplication):
		httperrors.WriteError(w, httperrors.ErrUnknownApplication)
	case errors.Is(err, repository.ErrUnknownCapability):
		httperrors.WriteError(w, httperrors.ErrUnknownCapability)
	case errors.Is(err, repository.ErrUnavailable):
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable.WithCause(err))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}

func writeHandshakeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, handshake.ErrInvalidCallback):
		httperrors.WriteError(w, httperrors.ErrInvalidCallback)
	case errors.Is(err, repository.ErrUnavailable):
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable.WithCause(err))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
