// Package observability holds the Prometheus collector and OpenTelemetry
// tracing setup shared by the HTTP layer and the chat pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	PipelineEvents *prometheus.CounterVec
	GraphDuration  *prometheus.HistogramVec
	LLMDuration    *prometheus.HistogramVec
	RateLimited    prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PipelineEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_events_total",
				Help:      "Events emitted by the chat pipeline",
			},
			[]string{"type"},
		),
		GraphDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_query_duration_seconds",
				Help:      "Context traversal duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"depth", "status"},
		),
		LLMDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Text generation request duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"operation", "status"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of context cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of context cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.PipelineEvents,
		c.GraphDuration,
		c.LLMDuration,
		c.RateLimited,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCache records a context cache lookup.
func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// RecordPipelineEvent counts one emitted pipeline event.
func (c *Collector) RecordPipelineEvent(eventType string) {
	if c == nil {
		return
	}
	c.PipelineEvents.WithLabelValues(eventType).Inc()
}

// ObserveGraphQuery records a context traversal.
func (c *Collector) ObserveGraphQuery(depth int, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.GraphDuration.WithLabelValues(strconv.Itoa(depth), statusLabel(err)).Observe(duration.Seconds())
}

// ObserveLLMRequest records a text generation request.
func (c *Collector) ObserveLLMRequest(operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.LLMDuration.WithLabelValues(operation, statusLabel(err)).Observe(duration.Seconds())
}

// RecordRateLimited counts a rejected request.
func (c *Collector) RecordRateLimited() {
	if c == nil {
		return
	}
	c.RateLimited.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
