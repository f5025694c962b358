package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	lifecycleTransitions  *prometheus.CounterVec
	spaceSubmissionsTotal *prometheus.CounterVec
	spaceCodeAttempts     prometheus.Histogram
	streamClientsActive   prometheus.Gauge
	feedEventsTotal       *prometheus.CounterVec
	draftImportsRejected  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skole_http_requests_total",
			Help: "Total number of observed API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skole_http_latency_seconds",
			Help:    "Latency distribution for observed API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skole_http_errors_total",
			Help: "Total number of error responses returned by observed endpoints.",
		}, []string{"method", "route", "status"})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_lifecycle_transitions_total",
			Help: "Lesson approve/reject/publish/unpublish decisions by outcome.",
		}, []string{"action", "outcome"})

		spaceSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "space_submissions_total",
			Help: "Submissions accepted per authorship bucket.",
		}, []string{"authorship"})

		spaceCodeAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "space_code_attempts",
			Help:    "Candidate codes tried before a unique space code was found.",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "space_stream_clients_active",
			Help: "Currently connected space feed subscribers.",
		})

		feedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "space_feed_events_total",
			Help: "Space feed events delivered to the local broker by origin.",
		}, []string{"origin"})

		draftImportsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_draft_imports_rejected_total",
			Help: "Rejected draft source imports by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			lifecycleTransitions,
			spaceSubmissionsTotal,
			spaceCodeAttempts,
			streamClientsActive,
			feedEventsTotal,
			draftImportsRejected,
		)
	})
}

// HTTPRequests exposes the counter for observed requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for observed requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LifecycleTransitions counts lesson moderation and publishing decisions.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// SpaceSubmissions counts accepted submissions.
func SpaceSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return spaceSubmissionsTotal
}

// SpaceCodeAttempts records how many candidates code generation needed.
func SpaceCodeAttempts() prometheus.Histogram {
	RegisterMetrics()
	return spaceCodeAttempts
}

// StreamClientsActive tracks open feed subscriptions.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}

// FeedEvents counts feed events by origin (local or remote).
func FeedEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return feedEventsTotal
}

// DraftImportsRejected counts refused source uploads.
func DraftImportsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return draftImportsRejected
}

// MetricsHandler serves the default registry, registering the collectors first when nothing else has.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
