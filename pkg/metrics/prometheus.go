// Package metrics provides Prometheus metrics for the contestlens service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Latency buckets in milliseconds; upstream calls are slow compared to
// in-process work.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // immutable bucket layout

// Manager manages all Prometheus metrics for the contestlens service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Analytics Metrics - what the dashboard is used for
	analysesTotal     *prometheus.CounterVec
	contestsAnalyzed  prometheus.Histogram
	emptyHistories    prometheus.Counter
	analysisDuration  prometheus.Histogram
	staleResponses    prometheus.Counter
	liveSessions      prometheus.Gauge
	liveSubmissions   prometheus.Counter
	chartsRendered    *prometheus.CounterVec
	proxyRequests     *prometheus.CounterVec
	upstreamRequests  *prometheus.CounterVec
	upstreamLatency   prometheus.Histogram
	upstreamRetries   prometheus.Counter
	upstreamFailures  *prometheus.CounterVec
	upstreamBodyBytes prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "contestlens",
		subsystem:        "dashboard",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often periodically sampled gauges should be updated.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// name applies the configured metric prefix.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	registry := m.registry
	if !m.enabled {
		// Metrics still work as in-memory values but are never exported.
		registry = prometheus.NewRegistry()
	}
	auto := promauto.With(registry)
	labels := prometheus.Labels(m.customLabels)

	m.analysesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("analyses_total"),
		Help:        "Total number of contest history analyses by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.contestsAnalyzed = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("contests_per_analysis"),
		Help:        "Number of attended contests per analyzed handle",
		Buckets:     []float64{0, 1, 5, 10, 25, 50, 100, 200, 400},
		ConstLabels: labels,
	})

	m.emptyHistories = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("empty_histories_total"),
		Help:        "Analyses of valid handles without any attended contest",
		ConstLabels: labels,
	})

	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("analysis_duration_milliseconds"),
		Help:        "End-to-end analysis latency including the upstream call",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.staleResponses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stale_responses_total"),
		Help:        "Responses discarded because a newer request superseded them",
		ConstLabels: labels,
	})

	m.liveSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("live_sessions"),
		Help:        "Currently connected live dashboard sessions",
		ConstLabels: labels,
	})

	m.liveSubmissions = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("live_submissions_total"),
		Help:        "Handles submitted through live sessions",
		ConstLabels: labels,
	})

	m.chartsRendered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("charts_rendered_total"),
		Help:        "Rating trend charts rendered by format",
		ConstLabels: labels,
	}, []string{"format"})

	m.proxyRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("proxy_requests_total"),
		Help:        "Requests forwarded through the proxy by upstream status class",
		ConstLabels: labels,
	}, []string{"status_class"})

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_requests_total"),
		Help:        "Upstream ranking service calls by status class",
		ConstLabels: labels,
	}, []string{"status_class"})

	m.upstreamLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_latency_milliseconds"),
		Help:        "Latency of single upstream attempts",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.upstreamRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_retries_total"),
		Help:        "Upstream attempts retried after a transient failure",
		ConstLabels: labels,
	})

	m.upstreamFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_failures_total"),
		Help:        "Fetches that ended in FetchFailed, by cause",
		ConstLabels: labels,
	}, []string{"cause"})

	m.upstreamBodyBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_body_bytes"),
		Help:        "Size of upstream response bodies",
		Buckets:     prometheus.ExponentialBuckets(256, 4, 8),
		ConstLabels: labels,
	})

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds (user experience)",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_type_total"),
			Help:        "Errors by type and severity",
			ConstLabels: labels,
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "Errors by HTTP endpoint",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("error_latency_milliseconds"),
			Help:        "Latency of operations that ended in an error",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_milliseconds"),
		Help:        "Average GC pause in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		ConstLabels: labels,
	})
}

// Analytics Metrics Functions.

// RecordAnalysis records the outcome of one analysis ("success" or "fetch_failed").
func RecordAnalysis(outcome string, durationMs float64) {
	globalManager.analysesTotal.WithLabelValues(outcome).Inc()
	globalManager.analysisDuration.Observe(durationMs)
}

// RecordContestsAnalyzed records how many attended contests an analysis produced.
func RecordContestsAnalyzed(count int) {
	globalManager.contestsAnalyzed.Observe(float64(count))
	if count == 0 {
		globalManager.emptyHistories.Inc()
	}
}

// RecordStaleResponse increments the discarded stale response counter.
func RecordStaleResponse() {
	globalManager.staleResponses.Inc()
}

// SessionOpened increments the live session gauge.
func SessionOpened() {
	globalManager.liveSessions.Inc()
}

// SessionClosed decrements the live session gauge.
func SessionClosed() {
	globalManager.liveSessions.Dec()
}

// RecordLiveSubmission increments the live submission counter.
func RecordLiveSubmission() {
	globalManager.liveSubmissions.Inc()
}

// RecordChartRendered increments the chart counter for format.
func RecordChartRendered(format string) {
	globalManager.chartsRendered.WithLabelValues(format).Inc()
}

// RecordProxyRequest records a proxied request by upstream status class.
func RecordProxyRequest(statusClass string) {
	globalManager.proxyRequests.WithLabelValues(statusClass).Inc()
}

// Upstream Metrics Functions.

// RecordUpstreamRequest records one upstream attempt.
func RecordUpstreamRequest(statusClass string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(statusClass).Inc()
	globalManager.upstreamLatency.Observe(latencyMs)
}

// RecordUpstreamRetry increments the upstream retry counter.
func RecordUpstreamRetry() {
	globalManager.upstreamRetries.Inc()
}

// RecordUpstreamFailure records a fetch that collapsed into FetchFailed.
func RecordUpstreamFailure(cause string) {
	globalManager.upstreamFailures.WithLabelValues(cause).Inc()
}

// RecordUpstreamBodySize records the size of an upstream response body.
func RecordUpstreamBodySize(n int) {
	globalManager.upstreamBodyBytes.Observe(float64(n))
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval returns the gauge refresh interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// StatusClass maps an HTTP status to "2xx", "4xx", ... or "error" when zero.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
