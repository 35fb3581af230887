package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels used by Collector.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeAborted  = "aborted"
	OutcomeCacheHit = "cache_hit"
)

// Collector exports queryable calls to Prometheus. It is safe for
// concurrent use.
type Collector struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	return &Collector{
		callsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitquery_calls_total",
				Help: "Total number of queryable calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		callDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hitquery_call_duration_seconds",
				Help:    "Duration of queryable calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
	}
}

// Observe records one call.
func (c *Collector) Observe(method, outcome string, d time.Duration) {
	c.callsTotal.WithLabelValues(method, outcome).Inc()
	c.callDuration.WithLabelValues(method, outcome).Observe(d.Seconds())
}
