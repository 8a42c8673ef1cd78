package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "popsim"

// Outcome label values for Simulations.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeUnstable = "unstable"
	OutcomeCanceled = "canceled"
)

// Metrics holds the Prometheus collectors for the simulation pipeline.
type Metrics struct {
	RegionsGenerated prometheus.Counter
	Simulations      *prometheus.CounterVec // labels: method, outcome
	RejectedSteps    prometheus.Counter

	StepsPerSimulation prometheus.Histogram
	PipelineDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_generated_total",
			Help:      "Total synthetic regions generated.",
		}),
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Growth simulations by integration method and outcome.",
		}, []string{"method", "outcome"}),
		RejectedSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_steps_total",
			Help:      "Adaptive steps rejected by the error controller.",
		}),
		StepsPerSimulation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "steps_per_simulation",
			Help:      "Accepted integrator steps per growth simulation.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a generate and simulate pipeline run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RegionsGenerated,
			m.Simulations,
			m.RejectedSteps,
			m.StepsPerSimulation,
			m.PipelineDuration,
		)
	}
	return m
}
