// Package metrics exposes Prometheus counters for the hold lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts hold lifecycle outcomes. All counters are monotonic and
// scraped via the /metrics endpoint.
type Metrics struct {
	HoldsCreated      prometheus.Counter
	HoldsReplayed     prometheus.Counter
	IdempotencyErrors prometheus.Counter
	HoldsReleased     prometheus.Counter
	HoldsExpired      prometheus.Counter
	StaleTransitions  prometheus.Counter
	SweepCycles       prometheus.Counter
	SweepErrors       prometheus.Counter
}

// New registers the lifecycle counters on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HoldsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_created_total",
			Help: "Holds created (first write for an idempotency key).",
		}),
		HoldsReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_replayed_total",
			Help: "Create requests answered from an existing hold by idempotency key.",
		}),
		IdempotencyErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_idempotency_conflicts_total",
			Help: "Create requests rejected because the key was reused for a different request.",
		}),
		HoldsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_released_total",
			Help: "Holds transitioned ACTIVE to RELEASED.",
		}),
		HoldsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_expired_total",
			Help: "Holds transitioned ACTIVE to EXPIRED by the sweeper.",
		}),
		StaleTransitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_stale_transitions_total",
			Help: "Transitions lost to a concurrent winner.",
		}),
		SweepCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_sweep_cycles_total",
			Help: "Completed sweeper cycles.",
		}),
		SweepErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_holds_sweep_errors_total",
			Help: "Sweeper cycles that failed to list or transition candidates.",
		}),
	}
}

// NewUnregistered returns counters bound to a throwaway registry, for tests
// and for components constructed without a metrics sink.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
