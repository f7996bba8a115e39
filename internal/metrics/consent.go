package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Consent protocol Prometheus metrics. Standalone package to avoid import
// cycles between the engine/handshake packages and HTTP.

var (
	AuthorizeDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_authorize_decisions_total",
		Help: "Authorization decisions by outcome (allow, consent_required).",
	}, []string{"decision"})

	ChallengesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consent_challenges_issued_total",
		Help: "Consent challenges issued.",
	})

	CallbackOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_callbacks_total",
		Help: "Consent callbacks by outcome (granted, denied, invalid).",
	}, []string{"outcome"})

	RetryDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_retry_dispatches_total",
		Help: "Post-consent retries of the original action by result (ok, failed).",
	}, []string{"result"})
)

// Register registers the consent metrics on the given registry (or default if
// nil). Double registration is tolerated so tests can rebuild the wiring.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		AuthorizeDecisions,
		ChallengesIssued,
		CallbackOutcomes,
		RetryDispatches,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
