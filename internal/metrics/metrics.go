// Package metrics holds the prometheus collectors for the extraction pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "The total number of model requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "termsheet",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Model request latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider"},
	)
	gatewayRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "gateway",
			Name:      "retries_total",
			Help:      "The total number of retried model requests.",
		},
		[]string{"provider"},
	)
	gatewayCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "gateway",
			Name:      "cache_hits_total",
			Help:      "The total number of model responses served from cache.",
		},
	)
	recoveryFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "recovery",
			Name:      "fallbacks_total",
			Help:      "The total number of model outputs that needed fallback recovery.",
		},
		[]string{"kind"},
	)
	documentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "pipeline",
			Name:      "documents_processed_total",
			Help:      "The total number of documents processed by status.",
		},
		[]string{"status"},
	)
	promptFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termsheet",
			Subsystem: "pipeline",
			Name:      "prompt_failures_total",
			Help:      "The total number of prompts whose model call failed after retries.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		gatewayRequests,
		gatewayDuration,
		gatewayRetries,
		gatewayCacheHits,
		recoveryFallbacks,
		documentsProcessed,
		promptFailures,
	)
}

// RecordGatewayRequest records one model call and its latency.
func RecordGatewayRequest(provider, outcome string, seconds float64) {
	gatewayRequests.WithLabelValues(provider, outcome).Inc()
	gatewayDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRetry counts a retried model call.
func RecordRetry(provider string) {
	gatewayRetries.WithLabelValues(provider).Inc()
}

// RecordCacheHit counts a response served from cache.
func RecordCacheHit() {
	gatewayCacheHits.Inc()
}

// RecordRecoveryFallback counts a salvaged model output.
func RecordRecoveryFallback(kind string) {
	recoveryFallbacks.WithLabelValues(kind).Inc()
}

// RecordDocument counts a processed document.
func RecordDocument(status string) {
	documentsProcessed.WithLabelValues(status).Inc()
}

// RecordPromptFailure counts a prompt whose model call failed.
func RecordPromptFailure() {
	promptFailures.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
