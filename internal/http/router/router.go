// Package router aggregates all HTTP routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	callbackctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/callback"
	consentctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/consent"
	healthctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/health"
	registryctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/registry"
	"github.com/dropDatabas3/consentgate/internal/http/middlewares"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

// Deps contains everything the router wires together.
type Deps struct {
	Verifier tokens.Verifier

	Consent  *consentctrl.Controller
	Callback *callbackctrl.Controller
	Registry *registryctrl.Controller
	Health   *healthctrl.Controller

	// AllowedOrigins feeds CORS. Empty disables cross-origin access.
	AllowedOrigins []string

	// ExposeMetrics mounts /metrics when true.
	ExposeMetrics bool
}

// New builds the full route tree.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.WithRecover())
	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithCORS(deps.AllowedOrigins))

	// Probes stay outside the logging middleware; they fire too often.
	r.Get("/health", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)

	if deps.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middlewares.WithLogging())
		api.Use(middlewares.NoStore())

		registerConsentRoutes(api, deps)
		registerHandshakeRoutes(api, deps)
		registerRegistryRoutes(api, deps)
	})

	return r
}

// registerConsentRoutes mounts consent management. All of it requires a
// verified bearer; the service layer additionally matches user_id against
// the token subject.
func registerConsentRoutes(api chi.Router, deps Deps) {
	c := deps.Consent

	api.Group(func(g chi.Router) {
		g.Use(middlewares.RequireAuth(deps.Verifier))

		g.Post("/consent", c.Grant)
		g.Post("/consent/check", c.Check)
		g.Get("/consent/check", c.CheckQuery)
		g.Get("/consent/user/{userID}", c.List)
		g.Delete("/consent/user/{userID}", c.ClearUser)
		g.Delete("/consent/user/{userID}/capability", c.Revoke)
		g.Delete("/consent/all", c.ClearAll)
	})
}

// registerHandshakeRoutes mounts the challenge and callback endpoints.
// Challenge issuance needs the caller's token (it names the user and is
// captured for the retry); info and callback run with optional auth so the
// browser flow can complete them.
func registerHandshakeRoutes(api chi.Router, deps Deps) {
	c := deps.Callback

	api.Group(func(g chi.Router) {
		g.Use(middlewares.RequireAuth(deps.Verifier))
		g.Post("/consent/challenge", c.CreateChallenge)
	})

	api.Group(func(g chi.Router) {
		g.Use(middlewares.OptionalAuth(deps.Verifier))
		g.Get("/consent/challenge/info", c.Info)
		g.Post("/consent/callback", c.Callback)
		g.Get("/consent/callback", c.CallbackQuery)
	})
}

// registerRegistryRoutes mounts the application registry admin API.
func registerRegistryRoutes(api chi.Router, deps Deps) {
	c := deps.Registry

	api.Group(func(g chi.Router) {
		g.Use(middlewares.RequireAuth(deps.Verifier))

		g.Post("/applications", c.Create)
		g.Get("/applications", c.List)
		g.Get("/applications/{id}", c.Get)
		g.Delete("/applications/{id}", c.Delete)
		g.Get("/applications/{id}/capabilities", c.Capabilities)
		g.Post("/applications/{id}/capabilities", c.AddCapability)
		g.Delete("/applications/{id}/capabilities/{capability}", c.RemoveCapability)
	})
}
