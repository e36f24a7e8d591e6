package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the service collectors on a private registry, so several
// services can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	polls       prometheus.Counter
	pollErrors  prometheus.Counter
	reloads     prometheus.Counter
	loadSeconds prometheus.Histogram
	records     prometheus.Gauge
	badRows     prometheus.Gauge
	subscribers prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fpd_dataset_polls_total",
			Help: "Dataset fingerprint checks.",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fpd_dataset_load_errors_total",
			Help: "Dataset loads that failed.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fpd_dataset_reloads_total",
			Help: "Successful dataset loads.",
		}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fpd_dataset_load_seconds",
			Help:    "Time to load the dataset.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fpd_dataset_records",
			Help: "Loan records currently served.",
		}),
		badRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fpd_dataset_skipped_rows",
			Help: "Rows dropped from the current dataset as malformed or undated.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fpd_stream_subscribers",
			Help: "Open event stream connections.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpd_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fpd_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.polls, m.pollErrors, m.reloads, m.loadSeconds,
		m.records, m.badRows, m.subscribers,
		m.requests, m.requestDuration,
	)
	return m
}

func (m *metrics) observeRequest(route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
