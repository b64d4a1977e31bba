// Package metrics exposes job lifecycle counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// Collector records job events on its own registry.
type Collector struct {
	Registry *prometheus.Registry

	submitted *prometheus.CounterVec
	denied    *prometheus.CounterVec
	finished  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	running   prometheus.Gauge
	evicted   prometheus.Counter
}

// New registers the job metrics under namespace, plus Go and process collectors.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		Registry: registry,
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Jobs admitted, by plan.",
		}, []string{"plan"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_denied_total",
			Help:      "Submissions rejected for quota, by plan.",
		}, []string{"plan"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs reaching a terminal state, by state.",
		}, []string{"state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from start to terminal state.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"state"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs currently running.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_evicted_total",
			Help:      "Finished jobs removed from memory.",
		}),
	}
	registry.MustRegister(c.submitted, c.denied, c.finished, c.duration, c.running, c.evicted)
	return c
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

func (c *Collector) JobSubmitted(plan models.Plan) {
	c.submitted.WithLabelValues(string(plan)).Inc()
}

func (c *Collector) AdmissionDenied(plan models.Plan) {
	c.denied.WithLabelValues(string(plan)).Inc()
}

func (c *Collector) JobStarted() {
	c.running.Inc()
}

func (c *Collector) JobFinished(state models.JobState, d time.Duration) {
	c.running.Dec()
	c.finished.WithLabelValues(string(state)).Inc()
	c.duration.WithLabelValues(string(state)).Observe(d.Seconds())
}

// JobsEvicted adds n to the eviction counter.
func (c *Collector) JobsEvicted(n int) {
	if n > 0 {
		c.evicted.Add(float64(n))
	}
}
