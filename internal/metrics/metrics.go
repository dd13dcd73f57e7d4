// Package metrics collects Prometheus metrics for the synchronization layer
// and exposes them for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the query cache and the mutations report to.
type Recorder interface {
	RecordFetch(family string, duration time.Duration, err error)
	RecordDedup(family string)
	RecordInvalidation(family string, entries int)
	RecordEviction(family string)
	RecordMutation(op string, err error)
}

// Nop discards everything. It is the default when no collector is wired.
type Nop struct{}

func (Nop) RecordFetch(string, time.Duration, error) {}
func (Nop) RecordDedup(string)                       {}
func (Nop) RecordInvalidation(string, int)           {}
func (Nop) RecordEviction(string)                    {}
func (Nop) RecordMutation(string, error)             {}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	fetches       *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	dedup         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	mutations     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "students_query_fetches_total",
			Help: "Query fetches issued to the transport, by key family and result.",
		}, []string{"family", "result"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "students_query_fetch_latency_seconds",
			Help:    "Latency of query fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"family"}),
		dedup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "students_query_dedup_total",
			Help: "Reads that joined an in-flight fetch instead of issuing one.",
		}, []string{"family"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "students_query_invalidated_entries_total",
			Help: "Cache entries marked stale by invalidation.",
		}, []string{"family"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "students_query_evictions_total",
			Help: "Unobserved cache entries discarded after the GC time.",
		}, []string{"family"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "students_mutations_total",
			Help: "Mutations by operation and result.",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(
		c.fetches,
		c.fetchLatency,
		c.dedup,
		c.invalidations,
		c.evictions,
		c.mutations,
	)

	return c
}

func (c *Collector) RecordFetch(family string, duration time.Duration, err error) {
	c.fetches.WithLabelValues(family, result(err)).Inc()
	c.fetchLatency.WithLabelValues(family).Observe(duration.Seconds())
}

func (c *Collector) RecordDedup(family string) {
	c.dedup.WithLabelValues(family).Inc()
}

func (c *Collector) RecordInvalidation(family string, entries int) {
	c.invalidations.WithLabelValues(family).Add(float64(entries))
}

func (c *Collector) RecordEviction(family string) {
	c.evictions.WithLabelValues(family).Inc()
}

func (c *Collector) RecordMutation(op string, err error) {
	c.mutations.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
