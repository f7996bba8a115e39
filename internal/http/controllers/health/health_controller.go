// Package health exposes the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/consentgate/internal/http/helpers"
)

// Pinger is any backend a readiness probe must reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	version string
	checks  map[string]Pinger
}

func NewController(version string, checks map[string]Pinger) *Controller {
	return &Controller{version: version, checks: checks}
}

// Live is the liveness probe. Always 200 while the process serves.
// GET /health
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": c.version,
	})
}

// Ready is the readiness probe. 503 with per-backend detail when any backend
// is unreachable.
// GET /readyz
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ready"
	detail := make(map[string]string, len(c.checks))
	for name, p := range c.checks {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			overall = "unavailable"
			detail[name] = err.Error()
			continue
		}
		detail[name] = "ok"
	}

	helpers.WriteJSON(w, status, map[string]any{
		"status": overall,
		"checks": detail,
	})
}
