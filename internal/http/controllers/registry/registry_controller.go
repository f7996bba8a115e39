// Package registry exposes the application registry admin endpoints.
package registry

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/registry"
	httperrors "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	regsvc "github.com/dropDatabas3/consentgate/internal/registry"
	"github.com/dropDatabas3/consentgate/internal/validation"
)

type Controller struct {
	service *regsvc.Service
}

func NewController(service *regsvc.Service) *Controller {
	return &Controller{service: service}
}

// Create registers an application.
// POST /api/v1/applications
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if !validation.ValidApplicationName(req.Name) {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid application name"))
		return
	}

	app, err := c.service.Create(r.Context(), req.Name)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, toDTO(app))
}

// List returns all registered applications.
// GET /api/v1/applications
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	apps, err := c.service.ListApplications(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	out := make([]dto.Application, 0, len(apps))
	for i := range apps {
		out = append(out, toDTO(&apps[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Get returns one application with its capabilities.
// GET /api/v1/applications/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	app, err := c.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toDTO(app))
}

// Delete removes an application and, through the store, its grants.
// DELETE /api/v1/applications/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Capabilities returns just the capability list of an application.
// GET /api/v1/applications/{id}/capabilities
func (c *Controller) Capabilities(w http.ResponseWriter, r *http.Request) {
	app, err := c.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	caps := app.Capabilities
	if caps == nil {
		caps = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string][]string{"capabilities": caps})
}

// AddCapability declares a capability on an application.
// POST /api/v1/applications/{id}/capabilities
func (c *Controller) AddCapability(w http.ResponseWriter, r *http.Request) {
	var req dto.CapabilityRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if !validation.ValidCapabilityName(req.Capability) {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid capability name"))
		return
	}

	if err := c.service.AddCapability(r.Context(), chi.URLParam(r, "id"), req.Capability); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCapability removes a declared capability.
// DELETE /api/v1/applications/{id}/capabilities/{capability}
func (c *Controller) RemoveCapability(w http.ResponseWriter, r *http.Request) {
	if err := c.service.RemoveCapability(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "capability")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toDTO(app *repository.Application) dto.Application {
	caps := app.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return dto.Application{
		ID:           app.ID,
		Name:         app.Name,
		Capabilities: caps,
		CreatedAt:    app.CreatedAt,
	}
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrUnknownApplication):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		httperrors.WriteError(w, httperrors.ErrAlreadyExists)
	case errors.Is(err, repository.ErrUnavailable):
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable.WithCause(err))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
