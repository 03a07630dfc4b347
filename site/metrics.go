package site

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the site's Prometheus collectors.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InquiriesTotal  *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "http_requests_total",
			Help:      "Site requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "karda",
			Name:      "http_request_duration_seconds",
			Help:      "Site request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	inquiries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karda",
			Name:      "inquiries_total",
			Help:      "Inquiry submissions by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		requests, duration, inquiries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: duration,
		InquiriesTotal:  inquiries,
	}
}

func (m *Metrics) observe(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) incInquiry(outcome string) {
	if m == nil {
		return
	}
	m.InquiriesTotal.WithLabelValues(outcome).Inc()
}
