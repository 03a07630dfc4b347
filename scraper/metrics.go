package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for listing scrapes.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "scrape_requests_total",
			Help:      "Listing page requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "karda",
			Name:      "scrape_request_duration_seconds",
			Help:      "Latency of listing page requests.",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 30, 60},
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "scrape_pages_total",
			Help:      "Listing pages extracted, by source host.",
		},
		[]string{"source"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "scrape_retries_total",
			Help:      "Retry attempts made after a failed fetch.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "scrape_errors_total",
			Help:      "Failed fetches by error kind.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest counts a request in the given phase (started, completed).
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request latency.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages counts an extracted page.
func (m *Metrics) IncPages(source string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(source).Inc()
}

// IncRetries counts a retry.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError counts a failure of the given kind.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
