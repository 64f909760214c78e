// Package metrics exposes Prometheus instruments for upstream calls, job
// lifecycles and HTTP traffic. A nil *Collector is a valid no-op.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rodinstudio"

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	jobsFinished     *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	pollChecks       prometheus.Counter
	sessionsActive   prometheus.Gauge
	artifactCache    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to the generation service by operation and outcome.",
		}, []string{"op", "outcome"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to the generation service.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"op"}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Generation lifecycles by terminal outcome.",
		}, []string{"outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from submission to terminal state.",
			Buckets:   []float64{15, 30, 60, 90, 120, 180, 300, 600},
		}, []string{"outcome"}),
		pollChecks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_checks_total",
			Help:      "Status checks issued by poll loops.",
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		artifactCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cache_total",
			Help:      "Artifact cache lookups by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveUpstream(op, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(op, outcome).Inc()
	c.upstreamDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) JobFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobsFinished.WithLabelValues(outcome).Inc()
	c.jobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) PollCheck() {
	if c == nil {
		return
	}
	c.pollChecks.Inc()
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

func (c *Collector) ArtifactCache(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.artifactCache.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
