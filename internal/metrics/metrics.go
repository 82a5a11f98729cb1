// Package metrics declares the Prometheus collectors of the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Upstream chatbot metrics
	ChatbotRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_chatbot_requests_total",
			Help: "Outbound chatbot requests by outcome",
		},
		[]string{"outcome"}, // "ok", "network_error", "bad_status", "bad_body"
	)

	ChatbotRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrchat_chatbot_request_duration_seconds",
			Help:    "Outbound chatbot request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Conversation metrics
	QueriesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrchat_queries_submitted_total",
			Help: "Queries accepted for submission",
		},
	)

	QueriesIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_queries_ignored_total",
			Help: "Queries ignored at submission",
		},
		[]string{"reason"}, // "blank", "in_flight", "closed"
	)

	QueriesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrchat_queries_failed_total",
			Help: "Queries that ended in the failure state",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrchat_active_sessions",
			Help: "Page sessions currently held in memory",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrchat_live_connections",
			Help: "Open conversation websocket connections",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Storage metrics
	ArchiveWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrchat_archive_write_errors_total",
			Help: "Transcript archive writes that failed",
		},
	)
)
