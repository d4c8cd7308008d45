package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BillingCycleRuns counts completed billing cycle invocations.
	BillingCycleRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_cycle_runs_total",
		Help: "Total number of billing cycle runs",
	})

	// BillingCycleDuration observes wall-clock duration of billing cycles.
	BillingCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_cycle_duration_seconds",
		Help:    "Duration of billing cycle runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// BillingRenewals counts renewal attempts by outcome.
	BillingRenewals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_renewals_total",
		Help: "Total number of renewal attempts by outcome",
	}, []string{"outcome"})

	// BillingLocks counts subscriptions moved to locked, by reason.
	BillingLocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_locks_total",
		Help: "Total number of subscriptions locked by reason",
	}, []string{"reason"})
)
