package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_rate_limited_requests_total",
			Help: "Total number of requests rejected by the inbound rate limiter",
		},
	)

	// Admission pipeline metrics
	AdmissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_admission_outcomes_total",
			Help: "Image admission results by outcome",
		},
		[]string{"outcome"}, // "admitted", "rejected", "inconclusive", "normalization_failed", "classification_failed"
	)

	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_admission_rejections_total",
			Help: "Rejected uploads by triggering category",
		},
		[]string{"category"},
	)

	Transcodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_transcodes_total",
			Help: "Legacy-format transcodes by result",
		},
		[]string{"result"},
	)

	ClassifierDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classifier_request_duration_seconds",
			Help:    "Latency of safety classifier calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	LocationAccuracy = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "location_accuracy_percent",
			Help:    "Distribution of landmark location accuracy scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	LocationScoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "location_score_failures_total",
			Help: "Location scoring failures degraded to an absent score",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one served HTTP request
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
