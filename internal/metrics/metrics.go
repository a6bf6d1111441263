package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchLatency measures closest-match search latency, cache lookups included
	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wellmatch_search_latency_seconds",
		Help:    "Latency of closest-match queries",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// QueriesTotal counts queries by outcome: ok, invalid_input, empty_reference, internal
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellmatch_queries_total",
		Help: "Total number of closest-match queries",
	}, []string{"outcome"})

	// CacheRequestsTotal counts match cache lookups by result: hit or miss
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellmatch_cache_requests_total",
		Help: "Total number of match cache lookups",
	}, []string{"result"})

	// ReferenceRows is the number of rows in the active reference table
	ReferenceRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wellmatch_reference_rows",
		Help: "Number of rows in the reference table",
	})

	// HTTPRequestsTotal counts HTTP requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellmatch_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "code"})

	// RateLimitedTotal counts requests rejected by the rate limiter
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wellmatch_rate_limited_total",
		Help: "Total number of requests rejected by rate limiting",
	})

	// EventClients is the number of connected event stream clients
	EventClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wellmatch_event_clients",
		Help: "Number of connected WebSocket event clients",
	})

	// EventsDroppedTotal counts events dropped because a buffer was full
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wellmatch_events_dropped_total",
		Help: "Total number of events dropped on full buffers",
	})

	// LogMessagesTotal counts log entries by level
	LogMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellmatch_log_messages_total",
		Help: "Total number of log messages emitted",
	}, []string{"level"})
)
