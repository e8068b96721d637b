package controlloop

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes used as the "outcome" label of DecisionsTotal.
const (
	OutcomeScaled      = "scaled"
	OutcomeUnchanged   = "unchanged"
	OutcomeReplacement = "replacement"
	OutcomeError       = "error"
)

var (
	// DecisionsTotal counts scaling iterations by cluster and outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smo_placer_scaling_decisions_total",
			Help: "Total number of scaling decisions by cluster and outcome",
		},
		[]string{"cluster", "outcome"},
	)

	// DesiredReplicas is the last replica count applied per service.
	DesiredReplicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smo_placer_desired_replicas",
			Help: "Replica count most recently applied by the scaling loop",
		},
		[]string{"cluster", "service"},
	)

	// DecisionLatency tracks how long the replica MILP takes per iteration.
	DecisionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smo_placer_scaling_decision_seconds",
			Help:    "Scaling decision latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"cluster"},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, DesiredReplicas, DecisionLatency)
}
