package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrievals_total",
			Help: "Total number of retrieve calls by cache outcome.",
		},
		[]string{"cache"}, // hit, miss, bypass, timeout
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_fanout_duration_seconds",
			Help:    "Duration of adapter fan-outs.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 7, 10},
		},
	)

	AdapterCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_calls_total",
			Help: "Total number of Retry Executor runs by service and outcome.",
		},
		[]string{"service", "outcome"}, // success, exhausted, rejected
	)

	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of failed attempts by service and error class.",
		},
		[]string{"service", "class"},
	)

	BreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_open_total",
			Help: "Total number of times a breaker was persisted open.",
		},
		[]string{"service"},
	)

	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_rejections_total",
			Help: "Total number of calls refused because the breaker was open.",
		},
		[]string{"service"},
	)

	ScrapePagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_pages_total",
			Help: "Total number of scrape jobs handled by outcome.",
		},
		[]string{"outcome"}, // cached, fetched, failed
	)

	HostPacingWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "host_pacing_wait_seconds",
			Help:    "Time callers spent waiting for their host turn.",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)
