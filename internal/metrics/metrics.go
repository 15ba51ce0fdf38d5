package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records policy decisions made by the engine. A nil *Collector is
// valid and records nothing.
type Collector struct {
	defaults     *prometheus.CounterVec
	demoted      prometheus.Counter
	transitions  *prometheus.CounterVec
	backoff      prometheus.Histogram
	redelivered  prometheus.Counter
	completedJob prometheus.Counter
}

// New creates a Collector and registers it with reg. A nil reg uses
// prometheus.DefaultRegisterer; an empty namespace defaults to "bleu".
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "bleu"
	}

	c := &Collector{
		defaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "defaults",
			Name:      "resolved_total",
			Help:      "Default asset lookups by outcome (assigned or existing).",
		}, []string{"outcome"}),
		demoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "demoted_total",
			Help:      "Assets demoted for exceeding the retention cap.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "failure_transitions_total",
			Help:      "Failure transitions by resulting status (failed or dead).",
		}, []string{"status"}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "retry_backoff_seconds",
			Help:      "Backoff delays assigned to failed jobs.",
			Buckets:   []float64{60, 120, 240, 480, 960, 1920, 3600},
		}),
		redelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "redelivered_total",
			Help:      "Failed jobs released back to the pending queue.",
		}),
		completedJob: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "succeeded_total",
			Help:      "Jobs completed successfully.",
		}),
	}

	for _, col := range []prometheus.Collector{c.defaults, c.demoted, c.transitions, c.backoff, c.redelivered, c.completedJob} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultResolved counts a default asset lookup; assigned is true when this
// call persisted the value.
func (c *Collector) DefaultResolved(assigned bool) {
	if c == nil {
		return
	}
	outcome := "existing"
	if assigned {
		outcome = "assigned"
	}
	c.defaults.WithLabelValues(outcome).Inc()
}

// Demoted counts assets flipped inactive.
func (c *Collector) Demoted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.demoted.Add(float64(n))
}

// Transition counts a failure decision and, for retryable ones, its delay.
func (c *Collector) Transition(status string, delay time.Duration) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(status).Inc()
	if delay > 0 {
		c.backoff.Observe(delay.Seconds())
	}
}

// Redelivered counts jobs released for another attempt.
func (c *Collector) Redelivered(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.redelivered.Add(float64(n))
}

// Succeeded counts a completed job.
func (c *Collector) Succeeded() {
	if c == nil {
		return
	}
	c.completedJob.Inc()
}
