package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapboard_upstream_requests_total",
		Help: "Upstream requests by endpoint and status code",
	}, []string{"endpoint", "code"})

	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapboard_upstream_request_duration_seconds",
		Help:    "Latency of upstream requests",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket
	}, []string{"endpoint"})

	commentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapboard_comment_fallback_attempts_total",
		Help: "Comment fallback candidates tried, by candidate and outcome",
	}, []string{"candidate", "outcome"})

	avatarLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapboard_avatar_lookups_total",
		Help: "Avatar lookups by outcome",
	}, []string{"outcome"})
)
