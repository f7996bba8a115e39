// Package consent exposes the consent management endpoints.
package consent

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/consent"
	httperrors "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/http/middlewares"
	consentsvc "github.com/dropDatabas3/consentgate/internal/http/services/consent"
)

type Controller struct {
	service consentsvc.Service
}

func NewController(service consentsvc.Service) *Controller {
	return &Controller{service: service}
}

// Grant records consent for one or more capabilities.
// POST /api/v1/consent
func (c *Controller) Grant(w http.ResponseWriter, r *http.Request) {
	var req dto.GrantRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	grants, err := c.service.Grant(r.Context(), middlewares.GetClaims(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, grants)
}

// Check reports per-capability grant status for a tuple.
// POST /api/v1/consent/check
func (c *Controller) Check(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	c.check(w, r, req)
}

// CheckQuery is the query-string form of Check, for callers that cannot
// send a body.
// GET /api/v1/consent/check?user_id=..&requesting_app_name=..&destination_app_name=..&capability=a&capability=b
func (c *Controller) CheckQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := dto.CheckRequest{
		UserID:             q.Get("user_id"),
		RequestingAppName:  q.Get("requesting_app_name"),
		DestinationAppName: q.Get("destination_app_name"),
		Capabilities:       q["capability"],
	}
	// Accept a comma list too.
	if len(req.Capabilities) == 1 && strings.Contains(req.Capabilities[0], ",") {
		req.Capabilities = strings.Split(req.Capabilities[0], ",")
	}
	c.check(w, r, req)
}

func (c *Controller) check(w http.ResponseWriter, r *http.Request, req dto.CheckRequest) {
	res, err := c.service.Check(r.Context(), middlewares.GetClaims(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// List returns every grant of one user, oldest first.
// GET /api/v1/consent/user/{userID}
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	grants, err := c.service.List(r.Context(), middlewares.GetClaims(r.Context()), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, grants)
}

// Revoke deletes a single grant tuple. Revoking an absent tuple succeeds.
// DELETE /api/v1/consent/user/{userID}/capability
func (c *Controller) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req dto.RevokeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.Revoke(r.Context(), middlewares.GetClaims(r.Context()), userID, req); err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "consent revoked"})
}

// ClearUser deletes every grant of one user.
// DELETE /api/v1/consent/user/{userID}
func (c *Controller) ClearUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	n, err := c.service.ClearUser(r.Context(), middlewares.GetClaims(r.Context()), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

// ClearAll wipes the whole consent table. Admin only.
// DELETE /api/v1/consent/all
func (c *Controller) ClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := c.service.ClearAll(r.Context(), middlewares.GetClaims(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consentsvc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrMissingFields)
	case errors.Is(err, consentsvc.ErrInvalidName):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid capability or application name"))
	case errors.Is(err, consentsvc.ErrSubjectMismatch):
		httperrors.WriteError(w, httperrors.ErrForbidden)
	case errors.Is(err, repository.ErrUnknownApplication):
		httperrors.WriteError(w, httperrors.ErrUnknownApplication)
	case errors.Is(err, repository.ErrUnknownCapability):
		httperrors.WriteError(w, httperrors.ErrUnknownCapability)
	case errors.Is(err, repository.ErrNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		httperrors.WriteError(w, httperrors.ErrAlreadyExists)
	case errors.Is(err, consentsvc.ErrStoreFailed), errors.Is(err, repository.ErrUnavailable):
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable.WithCause(err))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
