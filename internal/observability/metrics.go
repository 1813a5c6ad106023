package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for paperhub.
// Metrics are organized by subsystem: searches, lookups, rate limiting, plugin
// HTTP requests, plugin registry, PDF downloads and library imports. All
// collectors are registered via promauto with the default Prometheus registry.
//
// Every Record method is safe to call on a nil *Metrics, which lets
// components run without metrics in tests and in the CLI.
type Metrics struct {
	// SearchesStarted counts searches dispatched, labeled by plugin.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by plugin.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by plugin.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by plugin.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the number of papers returned per search, labeled by plugin.
	PapersPerSearch *prometheus.HistogramVec

	// FederatedSearches counts federated searches.
	FederatedSearches prometheus.Counter

	// Lookups counts identifier lookups, labeled by identifier type and outcome (found, miss).
	Lookups *prometheus.CounterVec

	// LookupAttempts counts per-plugin lookup attempts, labeled by plugin and outcome (found, miss, error).
	LookupAttempts *prometheus.CounterVec

	// RateLimitWaits counts dispatches the scheduler had to delay, labeled by plugin.
	RateLimitWaits *prometheus.CounterVec

	// RateLimitWaitSeconds observes scheduler delays in seconds, labeled by plugin.
	RateLimitWaitSeconds *prometheus.HistogramVec

	// PluginRequestsTotal counts HTTP requests to source APIs, labeled by plugin and endpoint.
	PluginRequestsTotal *prometheus.CounterVec

	// PluginRequestsFailed counts failed HTTP requests, labeled by plugin, endpoint and error type.
	PluginRequestsFailed *prometheus.CounterVec

	// PluginRequestDuration observes HTTP request duration to source APIs in seconds.
	PluginRequestDuration *prometheus.HistogramVec

	// PluginRateLimited counts 429 responses from source APIs, labeled by plugin.
	PluginRateLimited *prometheus.CounterVec

	// PluginsRegistered tracks the number of registered plugins.
	PluginsRegistered prometheus.Gauge

	// PluginEvents counts registry state transitions, labeled by event type.
	PluginEvents *prometheus.CounterVec

	// PdfDownloads counts PDF download attempts, labeled by source type and outcome.
	PdfDownloads *prometheus.CounterVec

	// LibraryImports counts library import results, labeled by outcome.
	LibraryImports *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of searches dispatched to plugins",
		}, []string{"plugin"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of plugin searches completed successfully",
		}, []string{"plugin"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of plugin searches that failed",
		}, []string{"plugin"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of plugin searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"plugin"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"plugin"}),
		FederatedSearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "federated_searches_total",
			Help:      "Total number of federated searches",
		}),

		// Lookups
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of identifier lookups",
		}, []string{"identifier_type", "outcome"}),
		LookupAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_attempts_total",
			Help:      "Total number of per-plugin lookup attempts",
		}, []string{"plugin", "outcome"}),

		// Rate limiting
		RateLimitWaits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Total number of dispatches delayed by the scheduler",
		}, []string{"plugin"}),
		RateLimitWaitSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the scheduler before dispatch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 3, 10, 60},
		}, []string{"plugin"}),

		// Plugin HTTP requests
		PluginRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_requests_total",
			Help:      "Total number of HTTP requests to source APIs",
		}, []string{"plugin", "endpoint"}),
		PluginRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_requests_failed_total",
			Help:      "Total number of failed HTTP requests to source APIs",
		}, []string{"plugin", "endpoint", "error_type"}),
		PluginRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_request_duration_seconds",
			Help:      "Duration of HTTP requests to source APIs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"plugin", "endpoint"}),
		PluginRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_rate_limited_total",
			Help:      "Total number of rate-limited responses from source APIs",
		}, []string{"plugin"}),

		// Registry
		PluginsRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_registered",
			Help:      "Number of registered plugins",
		}),
		PluginEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_events_total",
			Help:      "Total number of plugin registry events",
		}, []string{"type"}),

		// PDFs and library
		PdfDownloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_downloads_total",
			Help:      "Total number of PDF download attempts",
		}, []string{"source_type", "outcome"}),
		LibraryImports: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_imports_total",
			Help:      "Total number of library import results",
		}, []string{"outcome"}),
	}
}

// RecordSearchStarted records that a search was dispatched to a plugin.
func (m *Metrics) RecordSearchStarted(plugin string) {
	if m == nil {
		return
	}
	m.SearchesStarted.WithLabelValues(plugin).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(plugin string, paperCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesCompleted.WithLabelValues(plugin).Inc()
	m.SearchDuration.WithLabelValues(plugin).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(plugin).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(plugin string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesFailed.WithLabelValues(plugin).Inc()
	m.SearchDuration.WithLabelValues(plugin).Observe(durationSeconds)
}

// RecordFederatedSearch records a federated search.
func (m *Metrics) RecordFederatedSearch() {
	if m == nil {
		return
	}
	m.FederatedSearches.Inc()
}

// RecordLookup records the overall outcome of an identifier lookup.
func (m *Metrics) RecordLookup(identifierType string, found bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if found {
		outcome = "found"
	}
	m.Lookups.WithLabelValues(identifierType, outcome).Inc()
}

// RecordLookupAttempt records one plugin's lookup outcome.
func (m *Metrics) RecordLookupAttempt(plugin, outcome string) {
	if m == nil {
		return
	}
	m.LookupAttempts.WithLabelValues(plugin, outcome).Inc()
}

// RecordRateLimitWait records a scheduler delay before dispatch.
func (m *Metrics) RecordRateLimitWait(plugin string, waitSeconds float64) {
	if m == nil {
		return
	}
	m.RateLimitWaits.WithLabelValues(plugin).Inc()
	m.RateLimitWaitSeconds.WithLabelValues(plugin).Observe(waitSeconds)
}

// RecordPluginRequest records a request to a source API.
func (m *Metrics) RecordPluginRequest(plugin, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PluginRequestsTotal.WithLabelValues(plugin, endpoint).Inc()
	m.PluginRequestDuration.WithLabelValues(plugin, endpoint).Observe(durationSeconds)
}

// RecordPluginRequestFailed records a failed request to a source API.
func (m *Metrics) RecordPluginRequestFailed(plugin, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.PluginRequestsFailed.WithLabelValues(plugin, endpoint, errorType).Inc()
}

// RecordPluginRateLimited records a rate limit response from a source.
func (m *Metrics) RecordPluginRateLimited(plugin string) {
	if m == nil {
		return
	}
	m.PluginRateLimited.WithLabelValues(plugin).Inc()
}

// SetPluginsRegistered sets the registered plugin gauge.
func (m *Metrics) SetPluginsRegistered(n int) {
	if m == nil {
		return
	}
	m.PluginsRegistered.Set(float64(n))
}

// RecordPluginEvent records a registry state transition.
func (m *Metrics) RecordPluginEvent(eventType string) {
	if m == nil {
		return
	}
	m.PluginEvents.WithLabelValues(eventType).Inc()
}

// RecordPdfDownload records a PDF download attempt.
func (m *Metrics) RecordPdfDownload(sourceType, outcome string) {
	if m == nil {
		return
	}
	m.PdfDownloads.WithLabelValues(sourceType, outcome).Inc()
}

// RecordLibraryImport records a library import result.
func (m *Metrics) RecordLibraryImport(outcome string) {
	if m == nil {
		return
	}
	m.LibraryImports.WithLabelValues(outcome).Inc()
}
